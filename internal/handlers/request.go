package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const defaultMaxBodyBytes int64 = 64 << 10

var (
	errBodyTooLarge       = errors.New("request body too large")
	errInvalidJSON        = errors.New("request body must be a JSON object")
	errUnsupportedContent = errors.New("unsupported content type")
)

// requestParams holds the decoded fields of a JSON or form encoded body. JSON scalars are kept in
// their textual form and JSON arrays become repeated values.
type requestParams map[string][]string

func (p requestParams) get(key string) string {
	if values := p[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// list returns the values of key, accepting key, key[] and indexed key[N] spellings.
func (p requestParams) list(key string) []string {
	if values, ok := p[key]; ok {
		return append([]string(nil), values...)
	}
	if values, ok := p[key+"[]"]; ok {
		return append([]string(nil), values...)
	}
	type indexed struct {
		index int
		value string
	}
	var found []indexed
	prefix := key + "["
	for name, values := range p {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || len(values) == 0 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
		if err != nil || !strings.HasSuffix(rest, "]") {
			continue
		}
		found = append(found, indexed{index: idx, value: values[0]})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	out := make([]string, 0, len(found))
	for _, item := range found {
		out = append(out, item.value)
	}
	return out
}

// int64 parses an identifier that may arrive as "5", 5 or 5.0. Anything else yields zero.
func (p requestParams) int64(key string) int64 {
	return parseWholeNumber(p.get(key))
}

func parseWholeNumber(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int64(f)
}

// decodeParams reads the request body as JSON or form data. An empty body decodes to no params.
func decodeParams(r *http.Request, limit int64) (requestParams, error) {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return nil, err
	}
	params := requestParams{}
	for key, values := range r.URL.Query() {
		params[key] = values
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return params, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		for key, v := range values {
			params[key] = v
		}
	case mediaType == "application/json" || mediaType == "" || strings.HasSuffix(mediaType, "+json"):
		fields, err := decodeJSONObject(body)
		if err != nil {
			return nil, err
		}
		for key, v := range fields {
			params[key] = v
		}
	default:
		return nil, errUnsupportedContent
	}
	return params, nil
}

func decodeJSONObject(body []byte) (map[string][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, errInvalidJSON
	}
	if dec.More() {
		return nil, errInvalidJSON
	}
	out := make(map[string][]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case []any:
			values := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := scalarString(item); ok {
					values = append(values, s)
				}
			}
			out[key] = values
		default:
			if s, ok := scalarString(v); ok {
				out[key] = []string{s}
			}
		}
	}
	return out, nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
