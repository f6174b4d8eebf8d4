// Package store defines the session store data model and its on-disk codec.
//
// A session record is an open-ended JSON object. The fields the maintenance
// tooling understands are bound to typed struct fields; everything else is
// carried in an Extra passthrough bucket so that decoding never fails on a
// legacy record and encode(decode(x)) is value-equal to x.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one session's persisted state. Every recognized field is
// optional: a nil pointer (or nil map) means the field is absent. A known
// key whose value does not fit the expected shape is kept verbatim in Extra
// instead of being coerced or dropped.
type Record struct {
	Language          *string
	Registered        *bool
	Phone             *string
	CurrentCity       *int64
	SelectedCity      *int64
	IsAuthenticated   *bool
	OtpRetries        *int64
	LastOtpSent       *int64 // epoch milliseconds
	Cart              *Cart
	SelectedProduct   map[string]any
	SelectedCategory  map[string]any
	ProductQuantities *Quantities
	Address           any
	Coordinates       any
	SelectedBranch    *int64
	DeliveryType      *string
	AdditionalPhone   *string
	IncludeCutlery    *bool
	LastViewedOrder   any

	// Extra holds unrecognized fields and recognized fields whose value did
	// not match the expected shape.
	Extra map[string]any
}

// Cart is a session's shopping cart. Unknown cart-level keys and an items
// value that is not an array of objects are preserved in Extra.
type Cart struct {
	Items     []CartItem
	Total     *float64
	UpdatedAt string
	Extra     map[string]any
}

// CartItem is a single cart entry. Fields that fail to bind stay in Extra.
type CartItem struct {
	ID       *int64
	Name     *string
	Price    *float64
	Quantity *int64
	Extra    map[string]any
}

var knownKeys = map[string]bool{
	"language": true, "registered": true, "phone": true,
	"currentCity": true, "selectedCity": true, "isAuthenticated": true,
	"otpRetries": true, "lastOtpSent": true, "cart": true,
	"selectedProduct": true, "selectedCategory": true,
	"productQuantities": true, "address": true, "coordinates": true,
	"selectedBranch": true, "deliveryType": true, "additionalPhone": true,
	"includeCutlery": true, "lastViewedOrder": true,
}

// KnownKey reports whether key is part of the recognized record schema.
func KnownKey(key string) bool {
	return knownKeys[key]
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("session data is not an object: %w", err)
	}
	for key, val := range raw {
		if isJSONNull(val) {
			r.setExtra(key, nil)
			continue
		}
		if r.bindKnown(key, val) {
			continue
		}
		var v any
		if err := json.Unmarshal(val, &v); err != nil {
			return err
		}
		r.setExtra(key, v)
	}
	return nil
}

// bindKnown attempts to bind a recognized key to its typed field. It reports
// whether the value was consumed; a mismatched shape returns false so the
// caller keeps the raw value in Extra.
func (r *Record) bindKnown(key string, raw json.RawMessage) bool {
	switch key {
	case "language":
		return bindPtr(raw, &r.Language)
	case "registered":
		return bindPtr(raw, &r.Registered)
	case "phone":
		return bindPtr(raw, &r.Phone)
	case "currentCity":
		return bindPtr(raw, &r.CurrentCity)
	case "selectedCity":
		return bindPtr(raw, &r.SelectedCity)
	case "isAuthenticated":
		return bindPtr(raw, &r.IsAuthenticated)
	case "otpRetries":
		return bindPtr(raw, &r.OtpRetries)
	case "lastOtpSent":
		return bindPtr(raw, &r.LastOtpSent)
	case "selectedBranch":
		return bindPtr(raw, &r.SelectedBranch)
	case "deliveryType":
		return bindPtr(raw, &r.DeliveryType)
	case "additionalPhone":
		return bindPtr(raw, &r.AdditionalPhone)
	case "includeCutlery":
		return bindPtr(raw, &r.IncludeCutlery)
	case "cart":
		var c Cart
		if err := json.Unmarshal(raw, &c); err != nil {
			return false
		}
		r.Cart = &c
		return true
	case "selectedProduct":
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil || m == nil {
			return false
		}
		r.SelectedProduct = m
		return true
	case "selectedCategory":
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil || m == nil {
			return false
		}
		r.SelectedCategory = m
		return true
	case "productQuantities":
		var q Quantities
		if err := json.Unmarshal(raw, &q); err != nil {
			return false
		}
		r.ProductQuantities = &q
		return true
	case "address":
		return bindAny(raw, &r.Address)
	case "coordinates":
		return bindAny(raw, &r.Coordinates)
	case "lastViewedOrder":
		return bindAny(raw, &r.LastViewedOrder)
	}
	return false
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+8)
	for k, v := range r.Extra {
		out[k] = v
	}
	putPtr(out, "language", r.Language)
	putPtr(out, "registered", r.Registered)
	putPtr(out, "phone", r.Phone)
	putPtr(out, "currentCity", r.CurrentCity)
	putPtr(out, "selectedCity", r.SelectedCity)
	putPtr(out, "isAuthenticated", r.IsAuthenticated)
	putPtr(out, "otpRetries", r.OtpRetries)
	putPtr(out, "lastOtpSent", r.LastOtpSent)
	putPtr(out, "selectedBranch", r.SelectedBranch)
	putPtr(out, "deliveryType", r.DeliveryType)
	putPtr(out, "additionalPhone", r.AdditionalPhone)
	putPtr(out, "includeCutlery", r.IncludeCutlery)
	if r.Cart != nil {
		out["cart"] = r.Cart
	}
	if r.SelectedProduct != nil {
		out["selectedProduct"] = r.SelectedProduct
	}
	if r.SelectedCategory != nil {
		out["selectedCategory"] = r.SelectedCategory
	}
	if r.ProductQuantities != nil {
		out["productQuantities"] = r.ProductQuantities
	}
	if r.Address != nil {
		out["address"] = r.Address
	}
	if r.Coordinates != nil {
		out["coordinates"] = r.Coordinates
	}
	if r.LastViewedOrder != nil {
		out["lastViewedOrder"] = r.LastViewedOrder
	}
	return json.Marshal(out)
}

// Value returns the effective value of a top-level key regardless of whether
// it bound to a typed field or fell through to Extra. The boolean reports
// presence.
func (r *Record) Value(key string) (any, bool) {
	switch key {
	case "language":
		if r.Language != nil {
			return *r.Language, true
		}
	case "registered":
		if r.Registered != nil {
			return *r.Registered, true
		}
	case "phone":
		if r.Phone != nil {
			return *r.Phone, true
		}
	case "currentCity":
		if r.CurrentCity != nil {
			return *r.CurrentCity, true
		}
	case "selectedCity":
		if r.SelectedCity != nil {
			return *r.SelectedCity, true
		}
	case "isAuthenticated":
		if r.IsAuthenticated != nil {
			return *r.IsAuthenticated, true
		}
	case "otpRetries":
		if r.OtpRetries != nil {
			return *r.OtpRetries, true
		}
	case "lastOtpSent":
		if r.LastOtpSent != nil {
			return *r.LastOtpSent, true
		}
	case "selectedBranch":
		if r.SelectedBranch != nil {
			return *r.SelectedBranch, true
		}
	case "deliveryType":
		if r.DeliveryType != nil {
			return *r.DeliveryType, true
		}
	case "additionalPhone":
		if r.AdditionalPhone != nil {
			return *r.AdditionalPhone, true
		}
	case "includeCutlery":
		if r.IncludeCutlery != nil {
			return *r.IncludeCutlery, true
		}
	case "cart":
		if r.Cart != nil {
			return r.Cart, true
		}
	case "selectedProduct":
		if r.SelectedProduct != nil {
			return r.SelectedProduct, true
		}
	case "selectedCategory":
		if r.SelectedCategory != nil {
			return r.SelectedCategory, true
		}
	case "productQuantities":
		if r.ProductQuantities != nil {
			return r.ProductQuantities, true
		}
	case "address":
		if r.Address != nil {
			return r.Address, true
		}
	case "coordinates":
		if r.Coordinates != nil {
			return r.Coordinates, true
		}
	case "lastViewedOrder":
		if r.LastViewedOrder != nil {
			return r.LastViewedOrder, true
		}
	}
	v, ok := r.Extra[key]
	return v, ok
}

// Clone returns a deep copy of the record via an encode/decode round trip.
func (r *Record) Clone() (*Record, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("clone record: %w", err)
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone record: %w", err)
	}
	return &out, nil
}

func (r *Record) setExtra(key string, v any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = v
}

// DeleteExtra removes a passthrough field, dropping the map when it empties
// so cloned and freshly decoded records stay value-equal.
func (r *Record) DeleteExtra(key string) {
	delete(r.Extra, key)
	if len(r.Extra) == 0 {
		r.Extra = nil
	}
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if isJSONNull(val) {
			c.putExtra(key, nil)
			continue
		}
		switch key {
		case "items":
			items, ok := bindItems(val)
			if !ok {
				c.putExtra(key, rawToAny(val))
				continue
			}
			c.Items = items
		case "total":
			var f float64
			if err := json.Unmarshal(val, &f); err != nil {
				c.putExtra(key, rawToAny(val))
				continue
			}
			c.Total = &f
		case "updatedAt":
			var s string
			if err := json.Unmarshal(val, &s); err != nil {
				c.putExtra(key, rawToAny(val))
				continue
			}
			c.UpdatedAt = s
		default:
			c.putExtra(key, rawToAny(val))
		}
	}
	return nil
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Items != nil {
		out["items"] = c.Items
	}
	if c.Total != nil {
		out["total"] = *c.Total
	}
	if c.UpdatedAt != "" {
		out["updatedAt"] = c.UpdatedAt
	}
	return json.Marshal(out)
}

func (c *Cart) putExtra(key string, v any) {
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[key] = v
}

// bindItems accepts only an array whose every element is an object; anything
// else is preserved verbatim by the caller.
func bindItems(raw json.RawMessage) ([]CartItem, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	items := make([]CartItem, 0, len(elems))
	for _, e := range elems {
		var item CartItem
		if err := json.Unmarshal(e, &item); err != nil {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

func (i *CartItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		consumed := false
		if isJSONNull(val) {
			if i.Extra == nil {
				i.Extra = make(map[string]any)
			}
			i.Extra[key] = nil
			continue
		}
		switch key {
		case "id":
			consumed = bindPtr(val, &i.ID)
		case "name":
			consumed = bindPtr(val, &i.Name)
		case "price":
			consumed = bindPtr(val, &i.Price)
		case "quantity":
			consumed = bindPtr(val, &i.Quantity)
		}
		if !consumed {
			if i.Extra == nil {
				i.Extra = make(map[string]any)
			}
			i.Extra[key] = rawToAny(val)
		}
	}
	return nil
}

func (i CartItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Extra)+4)
	for k, v := range i.Extra {
		out[k] = v
	}
	putPtr(out, "id", i.ID)
	putPtr(out, "name", i.Name)
	putPtr(out, "price", i.Price)
	putPtr(out, "quantity", i.Quantity)
	return json.Marshal(out)
}

func bindPtr[T any](raw json.RawMessage, dst **T) bool {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = &v
	return true
}

func bindAny(raw json.RawMessage, dst *any) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

func putPtr[T any](out map[string]any, key string, v *T) {
	if v != nil {
		out[key] = *v
	}
}

func rawToAny(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
