package optimistic

// PendingRetry describes the last failed intent so RetryLast can replay it.
// It is a plain value: inspectable, comparable by field and safe to copy.
type PendingRetry struct {
	Kind      OpKind   `json:"kind"`
	ProductID string   `json:"productId,omitempty"`
	ItemID    string   `json:"itemId,omitempty"`
	Payload   *Payload `json:"payload,omitempty"`
	Patch     *Patch   `json:"patch,omitempty"`
	ItemIDs   []string `json:"itemIds,omitempty"`
}

func (r PendingRetry) clone() PendingRetry {
	out := r
	if r.Payload != nil {
		p := *r.Payload
		out.Payload = &p
	}
	if r.Patch != nil {
		p := *r.Patch
		if r.Patch.Quantity != nil {
			q := *r.Patch.Quantity
			p.Quantity = &q
		}
		out.Patch = &p
	}
	if r.ItemIDs != nil {
		out.ItemIDs = append([]string(nil), r.ItemIDs...)
	}
	return out
}
