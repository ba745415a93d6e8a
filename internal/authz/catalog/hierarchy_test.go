package catalog

import (
	"reflect"
	"testing"
)

func TestExpandIncludesTransitiveImplications(t *testing.T) {
	e := NewExpander(Default().Hierarchy())

	closure := NewSet(e.Expand(PermIPAssetsEditAll)...)
	for _, want := range []Permission{
		PermIPAssetsEditAll,
		PermIPAssetsEditOwn,
		PermIPAssetsViewAll,
		PermIPAssetsViewOwn,
		PermIPAssetsViewPublic,
	} {
		if !closure.Has(want) {
			t.Fatalf("closure of edit_all missing %q: %v", want, closure.List())
		}
	}
	if closure.Has(PermIPAssetsDeleteOwn) {
		t.Fatalf("closure of edit_all must not include delete_own")
	}
}

func TestExpandIdempotent(t *testing.T) {
	e := NewExpander(Default().Hierarchy())
	for p := range Default().Hierarchy() {
		once := e.Expand(p)
		twice := e.ExpandAll(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("expand not idempotent for %q: %v vs %v", p, once, twice)
		}
	}
}

func TestExpandTerminatesOnCycle(t *testing.T) {
	e := NewExpander(map[Permission][]Permission{
		"a.x": {"b.x"},
		"b.x": {"c.x"},
		"c.x": {"a.x"},
	})
	got := NewSet(e.Expand("a.x")...)
	want := NewSet("a.x", "b.x", "c.x")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cyclic expansion got %v want %v", got.List(), want.List())
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	good := NewExpander(Default().Hierarchy())
	if err := good.Validate(); err != nil {
		t.Fatalf("default hierarchy should be acyclic: %v", err)
	}

	bad := NewExpander(map[Permission][]Permission{
		"a.x": {"b.x"},
		"b.x": {"a.x"},
	})
	if err := bad.Validate(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestExpandUnknownPermissionReturnsSelf(t *testing.T) {
	e := NewExpander(Default().Hierarchy())
	got := e.Expand("nonexistent.thing")
	if len(got) != 1 || got[0] != "nonexistent.thing" {
		t.Fatalf("unknown permission should expand to itself, got %v", got)
	}
}

func TestWildcardSatisfies(t *testing.T) {
	cases := []struct {
		held     Permission
		required Permission
		want     bool
	}{
		{Wildcard, PermUsersDelete, true},
		{"licenses.*", PermLicensesTerminate, true},
		{"licenses.*", PermPayoutsApprove, false},
		{PermUsersView, PermUsersView, true},
		{PermUsersView, PermUsersEdit, false},
	}
	for _, tc := range cases {
		if got := tc.held.Satisfies(tc.required); got != tc.want {
			t.Errorf("%q satisfies %q = %v, want %v", tc.held, tc.required, got, tc.want)
		}
	}
}

func TestTemplatePermissionsSeniorExtendsBase(t *testing.T) {
	c := Default()
	junior, ok := c.TemplatePermissions(DeptFinance, SeniorityJunior)
	if !ok {
		t.Fatal("finance template missing")
	}
	senior, _ := c.TemplatePermissions(DeptFinance, SenioritySenior)
	if len(senior) <= len(junior) {
		t.Fatalf("senior template should extend base: junior=%v senior=%v", junior, senior)
	}
	if !NewSet(senior...).Has(PermPayoutsApprove) {
		t.Fatalf("senior finance should hold payouts.approve")
	}
	if NewSet(junior...).Has(PermPayoutsApprove) {
		t.Fatalf("junior finance must not hold payouts.approve")
	}
}
