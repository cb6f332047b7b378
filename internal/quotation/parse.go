package quotation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Row is one quotation line.
type Row struct {
	SrNo        int    `json:"srNo"`
	Description string `json:"description"`
	Make        string `json:"make"`
	Code        string `json:"code"`
	Range       string `json:"range"`
	Rate        string `json:"rate"`
	Remark      string `json:"remark"`
}

// UnmarshalJSON accepts numbers or strings for every field; generated
// output is not consistent about either.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw struct {
		SrNo        looseString `json:"srNo"`
		Description looseString `json:"description"`
		Make        looseString `json:"make"`
		Code        looseString `json:"code"`
		Range       looseString `json:"range"`
		Rate        looseString `json:"rate"`
		Remark      looseString `json:"remark"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n, _ := strconv.Atoi(strings.TrimSpace(string(raw.SrNo)))
	*r = Row{
		SrNo:        n,
		Description: string(raw.Description),
		Make:        string(raw.Make),
		Code:        string(raw.Code),
		Range:       string(raw.Range),
		Rate:        string(raw.Rate),
		Remark:      string(raw.Remark),
	}
	return nil
}

type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(data)
	return nil
}

// Envelope is the generator answer.
type Envelope struct {
	CompanyName string `json:"companyName"`
	Products    []Row  `json:"products"`
}

var (
	leadingFence  = regexp.MustCompile("^\\s*```[a-zA-Z]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```\\s*$")
)

// StripFence removes a leading ``` or ```json fence and a trailing fence.
func StripFence(s string) string {
	s = leadingFence.ReplaceAllString(s, "")
	return trailingFence.ReplaceAllString(s, "")
}

// PlaceholderRow is substituted when nothing usable was generated.
func PlaceholderRow() Row {
	return Row{SrNo: 1}
}

// Parse decodes a generator answer. It never fails: when the answer does
// not decode, the envelope holds a single placeholder row and no company
// and degraded is true. An empty product list also yields the placeholder
// row, keeping the company name.
func Parse(raw string) (env Envelope, degraded bool) {
	if err := json.Unmarshal([]byte(StripFence(raw)), &env); err != nil {
		return Envelope{Products: []Row{PlaceholderRow()}}, true
	}
	env.CompanyName = strings.TrimSpace(env.CompanyName)
	if len(env.Products) == 0 {
		env.Products = []Row{PlaceholderRow()}
	}
	for i := range env.Products {
		if env.Products[i].SrNo <= 0 {
			env.Products[i].SrNo = i + 1
		}
	}
	return env, false
}

// ParseResponse decodes a full backend body and then its quotation field.
// The field is normally a string holding (fenced) JSON; an inline object is
// accepted too. Anything else degrades like a malformed quotation.
func ParseResponse(body []byte) (Envelope, bool) {
	var resp struct {
		Quotation json.RawMessage `json:"quotation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Envelope{Products: []Row{PlaceholderRow()}}, true
	}
	raw := bytes.TrimSpace(resp.Quotation)
	if len(raw) > 0 && raw[0] == '{' {
		return Parse(string(raw))
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return Envelope{Products: []Row{PlaceholderRow()}}, true
	}
	return Parse(text)
}
