package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the page size used by FetchAll
const DefaultPageSize = 200

// CollectionClient implements optimistic.RemoteStore for one collection.
// The server derives the owner from the authenticated principal; ownerID is
// only used for logging.
type CollectionClient struct {
	http       *HTTPClient
	collection string
	moveTarget string
	pageSize   int
}

var _ optimistic.RemoteStore = (*CollectionClient)(nil)

// NewCollectionClient creates a client for collection ("cart", "wishlist").
// moveTarget is the collection MoveSubset moves items into; empty disables it.
func NewCollectionClient(httpClient *HTTPClient, collection, moveTarget string) *CollectionClient {
	return &CollectionClient{
		http:       httpClient,
		collection: collection,
		moveTarget: moveTarget,
		pageSize:   DefaultPageSize,
	}
}

func (c *CollectionClient) url(path string, params url.Values) string {
	u := fmt.Sprintf("%s/v1/%s%s", c.http.baseURL, url.PathEscape(c.collection), path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// send performs a request and decodes a JSON response into out (when non-nil).
// Any status outside 2xx becomes a classified error.
func (c *CollectionClient) send(ctx context.Context, method, reqURL string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(readStatusError(resp))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return optimistic.NewError(optimistic.KindServer, "réponse illisible", err)
	}
	return nil
}

// FetchAll pages through the collection until the cursor is exhausted
func (c *CollectionClient) FetchAll(ctx context.Context, ownerID string) (optimistic.Collection, error) {
	var (
		coll   = optimistic.Collection{Items: []optimistic.Item{}}
		cursor string
		pages  int
	)

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page listResponse
		if err := c.send(ctx, http.MethodGet, c.url("/items", params), nil, &page); err != nil {
			return optimistic.Collection{}, err
		}
		pages++

		coll.Items = append(coll.Items, page.Items...)
		if page.Summary != nil {
			coll.Summary = page.Summary
		}

		if page.NextCursor == nil || *page.NextCursor == "" || *page.NextCursor == cursor {
			break
		}
		cursor = *page.NextCursor
	}

	log.Ctx(ctx).Debug().
		Str("collection", c.collection).
		Str("ownerId", ownerID).
		Int("items", len(coll.Items)).
		Int("pages", pages).
		Msg("fetched collection")

	return coll, nil
}

// Add creates a line; a duplicate product comes back as a conflict
func (c *CollectionClient) Add(ctx context.Context, ownerID string, p optimistic.Payload) (optimistic.Item, error) {
	var item optimistic.Item
	if err := c.send(ctx, http.MethodPost, c.url("/items", nil), p, &item); err != nil {
		return optimistic.Item{}, err
	}
	return item, nil
}

// RemoveByKey deletes the line holding productID
func (c *CollectionClient) RemoveByKey(ctx context.Context, ownerID, productID string) error {
	params := url.Values{}
	params.Set("productId", productID)
	return c.send(ctx, http.MethodDelete, c.url("/items", params), nil, nil)
}

// RemoveByID deletes a line by its server id
func (c *CollectionClient) RemoveByID(ctx context.Context, ownerID, itemID string) error {
	return c.send(ctx, http.MethodDelete, c.url("/items/"+url.PathEscape(itemID), nil), nil, nil)
}

// Update patches a line's quantity
func (c *CollectionClient) Update(ctx context.Context, ownerID, itemID string, patch optimistic.Patch) (optimistic.Item, error) {
	var item optimistic.Item
	if err := c.send(ctx, http.MethodPatch, c.url("/items/"+url.PathEscape(itemID), nil), patch, &item); err != nil {
		return optimistic.Item{}, err
	}
	return item, nil
}

// Clear empties the collection
func (c *CollectionClient) Clear(ctx context.Context, ownerID string) error {
	return c.send(ctx, http.MethodDelete, c.url("", nil), nil, nil)
}

// MoveSubset moves itemIDs into the configured target collection
func (c *CollectionClient) MoveSubset(ctx context.Context, ownerID string, itemIDs []string) (optimistic.MoveResult, error) {
	if c.moveTarget == "" {
		return optimistic.MoveResult{}, optimistic.NewError(optimistic.KindValidation,
			fmt.Sprintf("déplacement non disponible pour %s", c.collection), nil)
	}

	var res optimistic.MoveResult
	body := moveRequest{ItemIDs: itemIDs, Target: c.moveTarget}
	if err := c.send(ctx, http.MethodPost, c.url("/move", nil), body, &res); err != nil {
		return optimistic.MoveResult{}, err
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	return res, nil
}
