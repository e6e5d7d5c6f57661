package backend

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/valyala/fasthttp"

	"cloudmail/utils"
)

// Table starts a request against one hosted table.
func (c *Client) Table(name string) *TableQuery {
	return &TableQuery{client: c, table: name, params: url.Values{}}
}

// TableQuery accumulates filter predicates for a table read. Only the
// predicates the app actually issues are modeled: equality, boolean
// equality and ordering. Row-level security scopes every call to the
// calling user's rows.
type TableQuery struct {
	client *Client
	table  string
	params url.Values
}

// Eq adds an equality predicate on a column.
func (q *TableQuery) Eq(column, value string) *TableQuery {
	q.params.Add(column, "eq."+value)
	return q
}

// EqBool adds an equality predicate on a boolean column.
func (q *TableQuery) EqBool(column string, value bool) *TableQuery {
	return q.Eq(column, fmt.Sprintf("%t", value))
}

// Order sorts the result by a column, descending when desc is set.
func (q *TableQuery) Order(column string, desc bool) *TableQuery {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

// URL renders the request target for this query.
func (q *TableQuery) URL() string {
	q.params.Set("select", "*")
	return q.client.cfg.URL + "/rest/v1/" + q.table + "?" + q.params.Encode()
}

// Select runs the read and decodes the rows into dest.
func (q *TableQuery) Select(token string, dest interface{}) error {
	status, resp, err := q.client.do(fasthttp.MethodGet, q.URL(), token, "", nil, nil)
	if err != nil {
		return utils.QueryError("Failed to load data", err)
	}
	if status >= 400 {
		return tableError(q.table, status, resp)
	}
	if err := json.Unmarshal(resp, dest); err != nil {
		return utils.QueryError("Unexpected response shape", err)
	}
	return nil
}

// Insert writes one or more rows. When dest is non-nil the provider is
// asked to return the created representation (used to learn generated ids).
func (c *Client) Insert(token, table string, value interface{}, dest interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return utils.QueryError("Failed to encode row", err)
	}

	prefer := map[string]string{"Prefer": "return=minimal"}
	if dest != nil {
		prefer["Prefer"] = "return=representation"
	}

	status, resp, err := c.do(fasthttp.MethodPost, c.cfg.URL+"/rest/v1/"+table, token, "application/json", body, prefer)
	if err != nil {
		return utils.QueryError("Failed to save data", err)
	}
	if status >= 400 {
		return tableError(table, status, resp)
	}
	if dest != nil {
		if err := json.Unmarshal(resp, dest); err != nil {
			return utils.QueryError("Unexpected response shape", err)
		}
	}
	return nil
}

// Update patches the row with the given id. fields holds only the columns
// being changed; every mutation in this app is a single-field update.
func (c *Client) Update(token, table, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return utils.QueryError("Failed to encode update", err)
	}

	target := c.cfg.URL + "/rest/v1/" + table + "?id=eq." + url.QueryEscape(id)
	status, resp, err := c.do(fasthttp.MethodPatch, target, token, "application/json", body,
		map[string]string{"Prefer": "return=minimal"})
	if err != nil {
		return utils.QueryError("Failed to save change", err)
	}
	if status >= 400 {
		return tableError(table, status, resp)
	}
	return nil
}

func tableError(table string, status int, body []byte) error {
	msg := apiMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("table %s request failed (status %d)", table, status)
	}
	return utils.QueryError(msg, nil)
}
