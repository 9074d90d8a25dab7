package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(q string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+q, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextWithQuery("limit=10&offset=30"))
	if p.Limit != 10 || p.Offset != 30 {
		t.Errorf("expected 10/30, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := FromContext(contextWithQuery("limit=5000&offset=-4"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected negative offset reset to 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, 2, 2)
	if resp.Total != 5 || !resp.HasMore {
		t.Errorf("expected total 5 with more pages, got %+v", resp)
	}
	last := NewResponse([]string{"e"}, 5, 2, 4)
	if last.HasMore {
		t.Error("expected no more pages on the last page")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	cases := []struct {
		name   string
		params Params
		want   []int
	}{
		{"first", Params{Limit: 2, Offset: 0}, []int{1, 2}},
		{"middle", Params{Limit: 2, Offset: 2}, []int{3, 4}},
		{"tail", Params{Limit: 2, Offset: 4}, []int{5}},
		{"beyond", Params{Limit: 2, Offset: 9}, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Page(items, tc.params)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(11) {
		t.Error("expected next page for 11 items")
	}
	if p.HasNext(10) {
		t.Error("expected no next page for 10 items")
	}
}
