package netbox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeNetBox is an in-memory NetBox serving the DCIM and branching endpoints.
type fakeNetBox struct {
	*httptest.Server

	// prefix is the base path NetBox is served under.
	prefix string

	mu       sync.Mutex
	version  string
	stuck    bool
	nextID   int64
	objects  map[string]map[int64]map[string]any
	branches []map[string]any
	headers  []string
	fail     map[string]int
	requests []string
}

// foreignKeys lists, per endpoint, the fields pointing at other endpoints.
var foreignKeys = map[string]map[string]string{
	"device-types": {"manufacturer": "manufacturers"},
	"devices":      {"device_type": "device-types", "role": "device-roles", "site": "sites"},
}

// nestedName is the display field of a nested reference.
var nestedName = map[string]string{
	"manufacturers": "name",
	"device-types":  "model",
	"device-roles":  "name",
	"sites":         "name",
}

func newFakeNetBox(t *testing.T) *fakeNetBox {
	t.Helper()
	return newFakeNetBoxAt(t, "")
}

// newFakeNetBoxAt serves NetBox under a base path such as "/netbox".
func newFakeNetBoxAt(t *testing.T, prefix string) *fakeNetBox {
	t.Helper()
	f := &fakeNetBox{
		prefix:  prefix,
		version: "4.1.3",
		objects: map[string]map[int64]map[string]any{
			"manufacturers": {}, "device-types": {}, "device-roles": {}, "sites": {}, "devices": {},
		},
		fail: map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeNetBox) config() Config {
	return Config{URL: f.URL + f.prefix + "/", APIToken: "secret", PageSize: 2}
}

// seed stores an object and returns its id.
func (f *fakeNetBox) seed(endpoint string, obj map[string]any) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	obj["id"] = f.nextID
	f.objects[endpoint][f.nextID] = obj
	return f.nextID
}

func (f *fakeNetBox) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects[endpoint])
}

func (f *fakeNetBox) object(endpoint string, id int64) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[endpoint][id]
}

func (f *fakeNetBox) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Token secret" {
		writeJSON(w, http.StatusForbidden, map[string]any{"detail": "Invalid token"})
		return
	}
	f.headers = append(f.headers, r.Header.Get(BranchHeader))
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if !strings.HasPrefix(r.URL.Path, f.prefix+"/") {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	r.URL.Path = strings.TrimPrefix(r.URL.Path, f.prefix)
	if code, ok := f.fail[r.Method+" "+r.URL.Path]; ok {
		writeJSON(w, code, map[string]any{"detail": "injected failure"})
		return
	}

	switch {
	case r.URL.Path == "/api/status/":
		writeJSON(w, http.StatusOK, map[string]any{
			"netbox-version": f.version,
			"plugins":        map[string]string{"netbox_branching": "0.5.0"},
		})
	case r.URL.Path == branchesPath:
		f.serveBranches(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/dcim/"):
		f.serveDCIM(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
	}
}

func (f *fakeNetBox) serveBranches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		name := r.URL.Query().Get("name")
		var results []any
		for _, b := range f.branches {
			if b["name"] == name {
				// Branches become ready after being observed once.
				results = append(results, cloneMap(b))
				if !f.stuck {
					b["status"] = map[string]any{"value": "ready", "label": "Ready"}
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "next": nil, "results": results})
	case http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.nextID++
		b := map[string]any{
			"id":        f.nextID,
			"name":      body["name"],
			"schema_id": fmt.Sprintf("sch%05d", f.nextID),
			"status":    map[string]any{"value": "provisioning", "label": "Provisioning"},
		}
		f.branches = append(f.branches, b)
		writeJSON(w, http.StatusCreated, cloneMap(b))
	}
}

func (f *fakeNetBox) serveDCIM(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/dcim/"), "/"), "/")
	endpoint := parts[0]
	store, ok := f.objects[endpoint]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			f.list(w, r, endpoint)
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.nextID++
			body["id"] = f.nextID
			store[f.nextID] = body
			writeJSON(w, http.StatusCreated, f.render(endpoint, body))
		}
		return
	}

	id, _ := strconv.ParseInt(parts[1], 10, 64)
	obj, ok := store[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "No object matches the given query."})
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		for k, v := range body {
			obj[k] = v
		}
		writeJSON(w, http.StatusOK, f.render(endpoint, obj))
	case http.MethodDelete:
		if f.referenced(endpoint, id) {
			writeJSON(w, http.StatusConflict, map[string]any{"detail": "Unable to delete object: protected by dependent objects"})
			return
		}
		delete(store, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeNetBox) list(w http.ResponseWriter, r *http.Request, endpoint string) {
	ids := make([]int64, 0, len(f.objects[endpoint]))
	for id := range f.objects[endpoint] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	var results []any
	for _, id := range ids[min(offset, len(ids)):end] {
		results = append(results, f.render(endpoint, f.objects[endpoint][id]))
	}

	var next any
	if end < len(ids) {
		next = fmt.Sprintf("%s%s%s?limit=%d&offset=%d", f.URL, f.prefix, r.URL.Path, limit, end)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(ids), "next": next, "results": results})
}

// render expands foreign keys into nested references.
func (f *fakeNetBox) render(endpoint string, obj map[string]any) map[string]any {
	out := cloneMap(obj)
	for field, target := range foreignKeys[endpoint] {
		id := toID(obj[field])
		parent := f.objects[target][id]
		nested := map[string]any{"id": id}
		if parent != nil {
			nested[nestedName[target]] = parent[nestedName[target]]
		}
		out[field] = nested
	}
	if endpoint == "devices" {
		status, _ := obj["status"].(string)
		out["status"] = map[string]any{"value": status, "label": status}
	}
	return out
}

func (f *fakeNetBox) referenced(endpoint string, id int64) bool {
	for child, fks := range foreignKeys {
		for field, target := range fks {
			if target != endpoint {
				continue
			}
			for _, obj := range f.objects[child] {
				if toID(obj[field]) == id {
					return true
				}
			}
		}
	}
	return false
}

func toID(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
