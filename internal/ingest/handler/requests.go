package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"mailscout/internal/ingest"
)

// webhookRecord accepts both the plain shape and the SignalHire callback shape:
//
//	{"itemId": "c1", "status": "success", "emails": ["john@x.com"]}
//	{"item": "https://linkedin.com/in/john", "status": "success",
//	 "candidate": {"fullName": "John Doe", "contacts": [{"type": "email", "value": "john@x.com"}]}}
type webhookRecord struct {
	ItemID    string     `json:"itemId"`
	Item      string     `json:"item"`
	Status    string     `json:"status"`
	FullName  string     `json:"fullName"`
	Emails    []string   `json:"emails"`
	Phones    []string   `json:"phones"`
	LinkedIn  string     `json:"linkedin"`
	Candidate *candidate `json:"candidate"`
}

type candidate struct {
	FullName string    `json:"fullName"`
	Contacts []contact `json:"contacts"`
	Social   []social  `json:"social"`
}

type contact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type social struct {
	Type string `json:"type"`
	Link string `json:"link"`
}

func (r webhookRecord) toRecord() ingest.Record {
	rec := ingest.Record{
		ItemID:   r.ItemID,
		Status:   r.Status,
		FullName: r.FullName,
		Emails:   r.Emails,
		Phones:   r.Phones,
		LinkedIn: r.LinkedIn,
	}
	if rec.ItemID == "" {
		rec.ItemID = r.Item
	}
	if c := r.Candidate; c != nil {
		if rec.FullName == "" {
			rec.FullName = c.FullName
		}
		for _, ct := range c.Contacts {
			switch strings.ToLower(ct.Type) {
			case "email":
				rec.Emails = append(rec.Emails, ct.Value)
			case "phone":
				rec.Phones = append(rec.Phones, ct.Value)
			}
		}
		for _, s := range c.Social {
			if rec.LinkedIn == "" && (s.Type == "li" || strings.Contains(s.Link, "linkedin.com")) {
				rec.LinkedIn = s.Link
			}
		}
	}
	if rec.LinkedIn == "" && strings.Contains(r.Item, "linkedin.com/") {
		rec.LinkedIn = r.Item
	}
	return rec
}

var (
	errEmptyBody = errors.New("empty body")
	errNotBatch  = errors.New("body must be a JSON array or object")
)

// decodeRecords reads a JSON array of records or a single record object.
// Elements are decoded one by one; an element that does not fit the record
// shape comes back as an Invalid record so its siblings still count.
func decodeRecords(body []byte) ([]ingest.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	var elems []json.RawMessage
	switch trimmed[0] {
	case '{':
		if !json.Valid(trimmed) {
			return nil, errors.New("invalid JSON object")
		}
		elems = []json.RawMessage{trimmed}
	case '[':
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, err
		}
	default:
		return nil, errNotBatch
	}

	out := make([]ingest.Record, len(elems))
	for i, elem := range elems {
		var r webhookRecord
		if err := json.Unmarshal(elem, &r); err != nil {
			out[i] = ingest.Record{Invalid: err.Error()}
			continue
		}
		out[i] = r.toRecord()
	}
	return out, nil
}
