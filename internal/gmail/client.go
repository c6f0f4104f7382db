package gmail

import "context"

// Client is the narrow Gmail surface required by inboxsheet.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	Get(ctx context.Context, id MessageID) (Message, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
}
