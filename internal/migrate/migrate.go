// Package migrate normalizes legacy session records into the canonical
// schema. Invalid optional fields are discarded rather than failing the
// record; a record that cannot be migrated at all is kept in its original
// form and the failure is counted by the caller.
package migrate

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/aatumaykin/sessmaint/internal/store"
)

// RecordTransformError reports a single record that could not be migrated.
// The batch continues; the original record is retained.
type RecordTransformError struct {
	ID  string
	Err error
}

func (e *RecordTransformError) Error() string {
	return fmt.Sprintf("migrate session %s: %v", e.ID, e.Err)
}

func (e *RecordTransformError) Unwrap() error {
	return e.Err
}

var (
	supportedLanguages = []language.Tag{
		language.English, // index 0 doubles as the fallback
		language.Russian,
		language.MustParse("uz"),
	}
	languageCodes   = []string{"en", "ru", "uz"}
	languageMatcher = language.NewMatcher(supportedLanguages)
)

// Migrator rewrites records into canonical shape.
type Migrator struct{}

// New creates a migrator.
func New() *Migrator {
	return &Migrator{}
}

// Migrate builds a canonical record from rec. Fields that resolve to no
// value after coercion are omitted; canonical records never carry nulls.
// A panic while coercing is converted into an error so one hostile record
// cannot abort the batch.
func (m *Migrator) Migrate(rec *store.Record) (out *store.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic while coercing record: %v", r)
		}
	}()

	out = &store.Record{}

	lang := normalizeLanguage(rec.Value("language"))
	out.Language = &lang

	registered := truthy(rec.Value("registered"))
	out.Registered = &registered
	authenticated := truthy(rec.Value("isAuthenticated"))
	out.IsAuthenticated = &authenticated
	if v, ok := rec.Value("includeCutlery"); ok {
		cutlery := truthy(v, true)
		out.IncludeCutlery = &cutlery
	}

	if s, ok := stringValue(rec.Value("phone")); ok {
		out.Phone = &s
	}
	if s, ok := stringValue(rec.Value("additionalPhone")); ok {
		out.AdditionalPhone = &s
	}

	if n, ok := positiveInt(rec.Value("currentCity")); ok {
		out.CurrentCity = &n
	}
	if n, ok := positiveInt(rec.Value("selectedCity")); ok {
		out.SelectedCity = &n
	}
	if n, ok := positiveInt(rec.Value("selectedBranch")); ok {
		out.SelectedBranch = &n
	}

	if n, ok := nonNegativeInt(rec.Value("otpRetries")); ok {
		out.OtpRetries = &n
	}
	if n, ok := positiveInt(rec.Value("lastOtpSent")); ok {
		out.LastOtpSent = &n
	}

	if v, ok := rec.Value("deliveryType"); ok {
		if s, isStr := v.(string); isStr && (s == "pickup" || s == "delivery") {
			out.DeliveryType = &s
		}
	}

	out.Cart = migrateCart(rec.Cart)
	out.Coordinates = migrateCoordinates(rec.Value("coordinates"))

	if rec.SelectedProduct != nil {
		out.SelectedProduct = rec.SelectedProduct
	}
	if rec.SelectedCategory != nil {
		out.SelectedCategory = rec.SelectedCategory
	}
	if rec.ProductQuantities != nil && rec.ProductQuantities.Len() > 0 {
		out.ProductQuantities = rec.ProductQuantities
	}
	if rec.Address != nil {
		out.Address = rec.Address
	}
	if rec.LastViewedOrder != nil {
		out.LastViewedOrder = rec.LastViewedOrder
	}

	// Unrecognized fields pass through for forward compatibility. Recognized
	// keys that fell into Extra were invalid shapes already handled (or
	// rejected) by the rules above, and nulls are never carried forward.
	for key, v := range rec.Extra {
		if store.KnownKey(key) || v == nil {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]any)
		}
		out.Extra[key] = v
	}

	return out, nil
}

// migrateCart filters the cart down to valid items and recomputes the total.
// A cart with zero valid items is omitted entirely.
func migrateCart(cart *store.Cart) *store.Cart {
	if cart == nil {
		return nil
	}

	var items []store.CartItem
	var total float64
	for _, item := range cart.Items {
		if item.ID == nil || *item.ID <= 0 {
			continue
		}
		if item.Price == nil || *item.Price < 0 {
			continue
		}
		if item.Quantity == nil || *item.Quantity <= 0 {
			continue
		}
		if item.Name == nil {
			continue
		}
		items = append(items, store.CartItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
		total += *item.Price * float64(*item.Quantity)
	}
	if len(items) == 0 {
		return nil
	}

	out := &store.Cart{Items: items, Total: &total}
	if cart.UpdatedAt != "" {
		out.UpdatedAt = cart.UpdatedAt
	}
	return out
}

// migrateCoordinates accepts coordinates only when both latitude and
// longitude parse as numbers within their valid ranges; partial or
// out-of-range coordinates are dropped as a whole.
func migrateCoordinates(v any, ok bool) any {
	if !ok {
		return nil
	}
	coords, isMap := v.(map[string]any)
	if !isMap {
		return nil
	}
	lat, latOK := numberValue(coords["latitude"])
	lon, lonOK := numberValue(coords["longitude"])
	if !latOK || !lonOK {
		return nil
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}
	return map[string]any{"latitude": lat, "longitude": lon}
}

// normalizeLanguage maps the stored language onto one of the supported
// codes. Region variants collapse to their base language; anything else
// falls back to English.
func normalizeLanguage(v any, ok bool) string {
	s, isStr := v.(string)
	if !ok || !isStr || s == "" {
		return languageCodes[0]
	}
	tag, err := language.Parse(s)
	if err != nil {
		return languageCodes[0]
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf < language.High {
		return languageCodes[0]
	}
	return languageCodes[idx]
}

// truthy applies the loose boolean coercion legacy records were written
// with: absent, false, zero and empty string are false, everything else
// is true.
func truthy(v any, ok bool) bool {
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int64:
		return val != 0
	case nil:
		return false
	}
	return true
}

func stringValue(v any, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	s, isStr := v.(string)
	if !isStr || s == "" {
		return "", false
	}
	return s, true
}

// numberValue accepts numbers and numeric strings.
func numberValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func positiveInt(v any, ok bool) (int64, bool) {
	if !ok {
		return 0, false
	}
	f, isNum := numberValue(v)
	if !isNum || f <= 0 {
		return 0, false
	}
	return int64(f), true
}

func nonNegativeInt(v any, ok bool) (int64, bool) {
	if !ok {
		return 0, false
	}
	f, isNum := numberValue(v)
	if !isNum || f < 0 {
		return 0, false
	}
	return int64(f), true
}
