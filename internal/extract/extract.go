// Package extract maps raw audit payloads to flat AuditRecords. Audits built
// from different template revisions label the same semantic field
// differently, so optional fields are resolved through an ordered list of
// candidate labels; the first match wins. Extraction is pure: the same
// payload and configuration always produce the same record.
package extract

import (
	"encoding/json"
	"strings"
	"time"

	"warranty-sync-service/internal/config"
	"warranty-sync-service/internal/store"
)

type Extractor struct {
	labels       config.LabelsConfig
	rules        map[string]config.SerialRule
	warrantyDays int
}

func NewExtractor(cfg config.SyncConfig) *Extractor {
	return &Extractor{
		labels:       cfg.Labels,
		rules:        cfg.SerialPrefixRules,
		warrantyDays: cfg.WarrantyPeriodDays,
	}
}

// Extract builds an AuditRecord from one raw audit payload. audit_id and
// modified_at are required; everything else is best-effort.
func (e *Extractor) Extract(raw map[string]any) (*store.AuditRecord, error) {
	auditID, err := requireString(raw, "audit_id")
	if err != nil {
		return nil, err
	}

	modifiedAt, ok := ModifiedAt(raw)
	if !ok {
		if _, present := raw["modified_at"]; !present {
			return nil, &ExtractionError{Kind: MissingRequiredField, Field: "modified_at"}
		}
		return nil, &ExtractionError{Kind: MalformedField, Field: "modified_at"}
	}

	rec := &store.AuditRecord{
		AuditID:          auditID,
		SourceModifiedAt: modifiedAt.UTC(),
	}

	rec.AuditDate = e.auditDate(raw)

	if sn, ok := e.answer(raw, e.labels.UnitSN); ok {
		sn = strings.ToUpper(strings.TrimSpace(sn))
		rec.UnitSN = &sn

		rule, matched := e.ruleFor(sn)
		length := 3
		if matched && rule.Length > 0 {
			length = rule.Length
		}
		if len(sn) >= length {
			model := sn[:length]
			rec.ModelNumber = &model
		}

		rec.WarrantyExpiry = e.warrantyExpiry(rec.AuditDate, rule, matched)
	} else {
		rec.WarrantyExpiry = e.warrantyExpiry(rec.AuditDate, config.SerialRule{}, false)
	}

	if ums, ok := e.answer(raw, e.labels.UMSSN); ok {
		normalized := NormalizeUMS(ums)
		rec.UMSSN = &normalized
	}

	if tm, ok := e.answer(raw, e.labels.TMDeviceID); ok {
		tm = strings.TrimSpace(tm)
		rec.TMDeviceID = &tm
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, &ExtractionError{Kind: MalformedField, Field: "payload"}
	}
	rec.Payload = payload

	return rec, nil
}

// ModifiedAt reads the server-side modified timestamp from a raw payload.
// It is exported so the orchestrator can bound the cursor by payloads that
// failed extraction for other reasons.
func ModifiedAt(raw map[string]any) (time.Time, bool) {
	s, ok := getString(raw, "modified_at")
	if !ok {
		return time.Time{}, false
	}
	return parseTime(s)
}

func (e *Extractor) auditDate(raw map[string]any) *time.Time {
	// Fixed payload path first, then the configured answer labels.
	if data, ok := getMap(raw, "audit_data"); ok {
		if s, ok := getString(data, "date_completed"); ok {
			if t, ok := parseTime(s); ok {
				return civilDate(t)
			}
		}
	}
	if s, ok := e.answer(raw, e.labels.AuditDate); ok {
		if t, ok := parseTime(s); ok {
			return civilDate(t)
		}
	}
	return nil
}

func (e *Extractor) warrantyExpiry(auditDate *time.Time, rule config.SerialRule, matched bool) *time.Time {
	if auditDate == nil {
		return nil
	}
	if matched && rule.Warranty > 0 {
		t := addYears(*auditDate, rule.Warranty)
		return &t
	}
	if e.warrantyDays > 0 {
		t := addWarrantyDays(*auditDate, e.warrantyDays)
		return &t
	}
	return nil
}

// ruleFor returns the serial rule whose prefix matches the serial, preferring
// the longest matching prefix so overlapping rules stay deterministic.
func (e *Extractor) ruleFor(serial string) (config.SerialRule, bool) {
	var best string
	var rule config.SerialRule
	for prefix, r := range e.rules {
		if strings.HasPrefix(serial, strings.ToUpper(prefix)) && len(prefix) > len(best) {
			best = prefix
			rule = r
		}
	}
	return rule, best != ""
}

// answer resolves the first candidate label answered in the audit's header
// or body items.
func (e *Extractor) answer(raw map[string]any, candidates []string) (string, bool) {
	for _, label := range candidates {
		for _, key := range []string{"header_items", "items"} {
			items, ok := getSlice(raw, key)
			if !ok {
				continue
			}
			for _, it := range items {
				item, ok := it.(map[string]any)
				if !ok {
					continue
				}
				got, ok := getString(item, "label")
				if !ok || !strings.EqualFold(strings.TrimSpace(got), label) {
					continue
				}
				if v, ok := itemResponse(item); ok {
					return v, true
				}
			}
		}
	}
	return "", false
}

func itemResponse(item map[string]any) (string, bool) {
	responses, ok := getMap(item, "responses")
	if !ok {
		return "", false
	}
	for _, key := range []string{"text", "datetime"} {
		if v, ok := getString(responses, key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// NormalizeUMS reduces a UMS serial to its digits and reformats them as
// xxxx-xxxx. Values with fewer than eight digits are passed through verbatim.
func NormalizeUMS(s string) string {
	var digits strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	d := digits.String()
	if len(d) < 8 {
		return strings.TrimSpace(s)
	}
	return d[:4] + "-" + d[4:8]
}

func requireString(m map[string]any, k string) (string, error) {
	v, present := m[k]
	if !present {
		return "", &ExtractionError{Kind: MissingRequiredField, Field: k}
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &ExtractionError{Kind: MalformedField, Field: k}
	}
	return s, nil
}

func getString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 && s != "" {
			return s, true
		}
	}
	return "", false
}

func getMap(m map[string]any, k string) (map[string]any, bool) {
	if v, ok := m[k]; ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return mm, true
		}
	}
	return nil, false
}

func getSlice(m map[string]any, k string) ([]any, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.([]any); ok2 {
			return s, true
		}
	}
	return nil, false
}

// parseTime accepts RFC3339 (with or without sub-second precision) and plain
// dates, the two shapes the audit API emits.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func civilDate(t time.Time) *time.Time {
	y, m, d := t.UTC().Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}
