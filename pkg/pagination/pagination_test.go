package pagination

import "testing"

func TestFromValues(t *testing.T) {
	cases := []struct {
		page, limit string
		want        Params
	}{
		{"", "", Params{Page: 1, Limit: 20, Offset: 0}},
		{"3", "10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"0", "-5", Params{Page: 1, Limit: 20, Offset: 0}},
		{"abc", "500", Params{Page: 1, Limit: 100, Offset: 0}},
	}
	for _, tc := range cases {
		if got := FromValues(tc.page, tc.limit); got != tc.want {
			t.Errorf("FromValues(%q, %q) = %+v, want %+v", tc.page, tc.limit, got, tc.want)
		}
	}
}

func TestMeta(t *testing.T) {
	m := Params{Page: 2, Limit: 20}.Meta(41)
	if m.TotalPages != 3 || !m.HasNext {
		t.Errorf("page 2 of 41/20: %+v", m)
	}
	m = Params{Page: 3, Limit: 20}.Meta(41)
	if m.HasNext {
		t.Errorf("last page reports a next page: %+v", m)
	}
	if m = (Params{Page: 1, Limit: 20}).Meta(0); m.TotalPages != 0 || m.HasNext {
		t.Errorf("empty result: %+v", m)
	}
}
