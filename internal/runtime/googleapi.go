// internal/runtime/googleapi.go: adapts *gmail.Service to the narrow gmail.Client interface
package runtime

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/inboxsheet/internal/gmail"
)

const userID = "me"

type googleClient struct{ svc *gmail.Service }

func NewGoogleAPIClient(svc *gmail.Service) *googleClient { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List(userID).Q(q.Raw).MaxResults(int64(pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, gc.MessageID(m.Id))
	}
	return page, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get(userID, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, err
	}
	return toMessage(msg), nil
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.ModifyMessageRequest{}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStrings(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = toStrings(ops.RemoveLabels)
	}
	_, err := g.svc.Users.Messages.Modify(userID, string(id), req).Context(ctx).Do()
	return err
}

func toMessage(msg *gmail.Message) gc.Message {
	out := gc.Message{ID: gc.MessageID(msg.Id), Payload: toPart(msg.Payload)}
	if msg.InternalDate != 0 {
		out.InternalDate = strconv.FormatInt(msg.InternalDate, 10)
	}
	for _, l := range msg.LabelIds {
		out.Labels = append(out.Labels, gc.LabelID(l))
	}
	return out
}

func toPart(p *gmail.MessagePart) *gc.Part {
	if p == nil {
		return nil
	}
	part := &gc.Part{MimeType: p.MimeType}
	for _, h := range p.Headers {
		if h == nil {
			continue
		}
		part.Headers = append(part.Headers, gc.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil && p.Body.Data != "" {
		part.Data = decodeBody(p.Body.Data)
	}
	for _, child := range p.Parts {
		if c := toPart(child); c != nil {
			part.Parts = append(part.Parts, c)
		}
	}
	return part
}

// decodeBody accepts Gmail's base64url with or without padding. Bodies that
// do not decode are treated as empty so the walk moves on to other parts.
func decodeBody(data string) []byte {
	trimmed := strings.TrimRight(data, "=")
	if b, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return b
	}
	if b, err := base64.RawStdEncoding.DecodeString(trimmed); err == nil {
		return b
	}
	return nil
}

func toStrings(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

var _ gc.Client = (*googleClient)(nil)
