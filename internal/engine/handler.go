package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/pos-sync/internal/backend"
	"github.com/richardliu001/pos-sync/internal/model"
)

// ErrInvalidPayload marks a fetched snapshot that failed decoding for
// a typed entity. Reported as a nack; the queue moves on.
var ErrInvalidPayload = errors.New("invalid entity payload")

// Fetcher retrieves an entity snapshot as of a point in time.
// backend.ErrGone means the entity was deleted by that moment.
type Fetcher interface {
	FetchEntityAt(ctx context.Context, entityType, entityID string, asOf time.Time) (string, error)
}

// entityHandler is the fetch+apply logic for one entity type: temporal
// fetch, optional payload validation, then placement through the
// shadow manager. The server's snapshot always wins; no local merge.
type entityHandler struct {
	entityType string
	collection string
	validate   func([]byte) error
}

func (h *entityHandler) handle(ctx context.Context, fetch Fetcher, shadows *ShadowManager, evt model.ChangeEvent) error {
	payload, err := fetch.FetchEntityAt(ctx, h.entityType, evt.EntityID, evt.Timestamp)
	if errors.Is(err, backend.ErrGone) {
		return shadows.ApplyDelete(ctx, h.collection, evt.EntityID)
	}
	if err != nil {
		return err
	}
	if h.validate != nil {
		if err := h.validate([]byte(payload)); err != nil {
			return fmt.Errorf("%w: %s/%s: %v", ErrInvalidPayload, h.entityType, evt.EntityID, err)
		}
	}
	return shadows.ApplyUpdate(ctx, h.collection, evt.EntityID, payload)
}

func decodeInto(target func() interface{}) func([]byte) error {
	return func(raw []byte) error {
		return json.Unmarshal(raw, target())
	}
}

// defaultHandlers routes the known reference entity types to their
// collections. The set is open: the dispatcher nacks anything not
// listed here as unsupported instead of failing the queue.
func defaultHandlers() map[string]*entityHandler {
	handlers := map[string]*entityHandler{
		model.EntityProduct: {
			entityType: model.EntityProduct,
			collection: "product",
			validate:   decodeInto(func() interface{} { return &model.Product{} }),
		},
		model.EntityCategory: {
			entityType: model.EntityCategory,
			collection: "category",
			validate:   decodeInto(func() interface{} { return &model.Category{} }),
		},
		model.EntityTax: {
			entityType: model.EntityTax,
			collection: "tax",
			validate:   decodeInto(func() interface{} { return &model.Tax{} }),
		},
		model.EntityCrv: {
			entityType: model.EntityCrv,
			collection: "crv",
			validate:   decodeInto(func() interface{} { return &model.Crv{} }),
		},
		model.EntityProductTax: {
			entityType: model.EntityProductTax,
			collection: "product_tax",
			validate:   decodeInto(func() interface{} { return &model.ProductTax{} }),
		},
		// opaque types: stored verbatim, no local decoding needed
		model.EntityLookupGroup:     {entityType: model.EntityLookupGroup, collection: "lookup_group"},
		model.EntityProductImage:    {entityType: model.EntityProductImage, collection: "product_image"},
		model.EntityDeviceInfo:      {entityType: model.EntityDeviceInfo, collection: "device_info"},
		model.EntityDeviceAttribute: {entityType: model.EntityDeviceAttribute, collection: "device_attribute"},
		model.EntityConditionalSale: {entityType: model.EntityConditionalSale, collection: "conditional_sale"},
	}
	return handlers
}
