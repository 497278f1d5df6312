package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/trash2cash/internal/domain"
	"github.com/punchamoorthee/trash2cash/internal/media"
	"github.com/punchamoorthee/trash2cash/internal/store"
)

var (
	homeowner  = domain.Actor{ID: "home-1", Role: domain.RoleHomeowner}
	neighbour  = domain.Actor{ID: "home-2", Role: domain.RoleHomeowner}
	collector  = domain.Actor{ID: "coll-1", Role: domain.RoleCollector}
	collector2 = domain.Actor{ID: "coll-2", Role: domain.RoleCollector}
	corp       = domain.Actor{ID: "corp-1", Role: domain.RoleCorporation}
)

// tickingClock returns a clock that advances one second per call so that
// ordering by creation time is deterministic.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	store    store.Store
	media    *media.Memory
	listings *ListingService
	requests *RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemory())
}

func newFixtureWithStore(t *testing.T, st store.Store) *fixture {
	t.Helper()
	clock := tickingClock()
	up := media.NewMemory("https://cdn.test")
	return &fixture{
		store:    st,
		media:    up,
		listings: NewListingService(st, up, WithClock(clock)),
		requests: NewRequestService(st, WithClock(clock)),
	}
}

func (f *fixture) listing(t *testing.T, owner domain.Actor) *domain.Listing {
	t.Helper()
	l, err := f.listings.Create(context.Background(), owner, domain.ListingInput{
		Title:       "Plastic bottles",
		Description: "Two bags of PET bottles",
		Price:       "50",
		WasteType:   "plastic",
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func (f *fixture) request(t *testing.T, actor domain.Actor, listingID string) *domain.Request {
	t.Helper()
	r, err := f.requests.Create(context.Background(), actor, listingID, "")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want %v", err, kind)
	}
}

func (f *fixture) listingStatus(t *testing.T, id string) domain.ListingStatus {
	t.Helper()
	l, err := f.listings.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	return l.Status
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	if l.Status != domain.ListingOpen || l.Price != 50 || l.WasteType != domain.WastePlastic {
		t.Fatalf("created listing %+v", l)
	}

	r := f.request(t, collector, l.ID)
	if r.Status != domain.RequestPending || r.Type != domain.RequestTypeCollector {
		t.Fatalf("created request %+v", r)
	}

	r, err := f.requests.Accept(ctx, homeowner, r.ID, "  12 Main St ", "(555) 123-4567")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if r.Status != domain.RequestAccepted || r.PickupLocation != "12 Main St" || r.ContactNumber != "5551234567" || r.AcceptedAt == nil {
		t.Fatalf("accepted request %+v", r)
	}
	if got := f.listingStatus(t, l.ID); got != domain.ListingSold {
		t.Fatalf("listing status after accept = %s", got)
	}

	r, err = f.requests.MarkPickedUp(ctx, collector, r.ID)
	if err != nil || r.Status != domain.RequestPickedUp || r.PickedUpAt == nil {
		t.Fatalf("pickup: %+v %v", r, err)
	}
	if _, err := f.requests.MarkPickedUp(ctx, collector, r.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second pickup err = %v", err)
	}

	r, err = f.requests.MarkPaymentReceived(ctx, homeowner, r.ID)
	if err != nil || r.Status != domain.RequestPaymentReceived || r.PaidAt == nil {
		t.Fatalf("payment: %+v %v", r, err)
	}
	if got := f.listingStatus(t, l.ID); got != domain.ListingClosed {
		t.Fatalf("listing status after payment = %s", got)
	}
	if _, err := f.requests.MarkPaymentReceived(ctx, homeowner, r.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second payment err = %v", err)
	}
}

func TestAcceptValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	r := f.request(t, collector, l.ID)

	_, err := f.requests.Accept(ctx, homeowner, r.ID, "12 Main St", "12345")
	wantKind(t, err, domain.ErrValidation)
	_, err = f.requests.Accept(ctx, homeowner, r.ID, "   ", "5551234567")
	wantKind(t, err, domain.ErrValidation)

	got, err := f.requests.Get(ctx, collector, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RequestPending || got.PickupLocation != "" {
		t.Fatalf("rejected accept changed the request: %+v", got.Request)
	}
	if s := f.listingStatus(t, l.ID); s != domain.ListingOpen {
		t.Fatalf("listing status = %s", s)
	}
}

func TestTransitionsRequireTheRightActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	r := f.request(t, collector, l.ID)

	_, err := f.requests.Accept(ctx, collector, r.ID, "x", "5551234567")
	wantKind(t, err, domain.ErrUnauthorized)
	_, err = f.requests.Accept(ctx, neighbour, r.ID, "x", "5551234567")
	wantKind(t, err, domain.ErrUnauthorized)

	if _, err := f.requests.Accept(ctx, homeowner, r.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	_, err = f.requests.MarkPickedUp(ctx, homeowner, r.ID)
	wantKind(t, err, domain.ErrUnauthorized)
	if _, err := f.requests.MarkPickedUp(ctx, collector, r.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.requests.MarkPaymentReceived(ctx, collector, r.ID)
	wantKind(t, err, domain.ErrUnauthorized)
}

func TestTransitionsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	r := f.request(t, collector, l.ID)

	_, err := f.requests.MarkPickedUp(ctx, collector, r.ID)
	wantKind(t, err, domain.ErrInvalidState)
	_, err = f.requests.MarkPaymentReceived(ctx, homeowner, r.ID)
	wantKind(t, err, domain.ErrInvalidState)

	if _, err := f.requests.Accept(ctx, homeowner, r.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	_, err = f.requests.Accept(ctx, homeowner, r.ID, "x", "5551234567")
	wantKind(t, err, domain.ErrInvalidState)
	_, err = f.requests.MarkPaymentReceived(ctx, homeowner, r.ID)
	wantKind(t, err, domain.ErrInvalidState)

	_, err = f.requests.Accept(ctx, homeowner, "missing", "x", "5551234567")
	wantKind(t, err, domain.ErrNotFound)
}

func TestAcceptAfterAnotherWasAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	first := f.request(t, collector, l.ID)
	second := f.request(t, collector2, l.ID)

	if _, err := f.requests.Accept(ctx, homeowner, first.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	_, err := f.requests.Accept(ctx, homeowner, second.ID, "x", "5551234567")
	wantKind(t, err, domain.ErrConflict)

	got, _ := f.requests.Get(ctx, collector2, second.ID)
	if got.Status != domain.RequestPending {
		t.Fatalf("losing request status = %s", got.Status)
	}
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)

	const n = 16
	ids := make([]string, n)
	for i := range ids {
		actor := domain.Actor{ID: "collector-" + string(rune('a'+i)), Role: domain.RoleCollector}
		ids[i] = f.request(t, actor, l.ID).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.requests.Accept(ctx, homeowner, id, "Depot 4", "555-123-4567")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if successes != 1 || conflicts != n-1 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
	accepted, err := f.store.FindRequests(ctx, domain.RequestFilter{ListingID: l.ID, Status: domain.RequestAccepted})
	if err != nil || len(accepted) != 1 {
		t.Fatalf("accepted requests = %d, %v", len(accepted), err)
	}
}

func TestCreateRequestRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	home := f.listing(t, homeowner)
	coll := f.listing(t, collector)

	cases := []struct {
		name    string
		actor   domain.Actor
		listing string
		typ     domain.RequestType
		want    error
	}{
		{"homeowner cannot request", neighbour, home.ID, "", domain.ErrUnauthorized},
		{"corporation cannot request homeowner listing", corp, home.ID, "", domain.ErrUnauthorized},
		{"collector cannot request collector listing", collector2, coll.ID, "", domain.ErrUnauthorized},
		{"owner cannot request own listing", collector, coll.ID, "", domain.ErrConflict},
		{"type must mirror role", collector, home.ID, domain.RequestTypeCorporation, domain.ErrValidation},
		{"missing listing", collector, "nope", "", domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.requests.Create(ctx, tc.actor, tc.listing, tc.typ)
			wantKind(t, err, tc.want)
		})
	}

	r, err := f.requests.Create(ctx, corp, coll.ID, domain.RequestTypeCorporation)
	if err != nil || r.Type != domain.RequestTypeCorporation {
		t.Fatalf("corporation request: %+v %v", r, err)
	}
}

func TestDuplicateRequestAndWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	r := f.request(t, collector, l.ID)

	_, err := f.requests.Create(ctx, collector, l.ID, "")
	wantKind(t, err, domain.ErrConflict)

	wantKind(t, f.requests.Withdraw(ctx, homeowner, r.ID), domain.ErrUnauthorized)
	if err := f.requests.Withdraw(ctx, collector, r.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	_, err = f.requests.Get(ctx, collector, r.ID)
	wantKind(t, err, domain.ErrNotFound)

	again := f.request(t, collector, l.ID)
	if _, err := f.requests.Accept(ctx, homeowner, again.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	wantKind(t, f.requests.Withdraw(ctx, collector, again.ID), domain.ErrInvalidState)
}

func TestRequestOnSoldListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	r := f.request(t, collector, l.ID)
	if _, err := f.requests.Accept(ctx, homeowner, r.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	_, err := f.requests.Create(ctx, collector2, l.ID, "")
	wantKind(t, err, domain.ErrConflict)
}

func TestCascadeDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)
	other := f.listing(t, homeowner)
	f.request(t, collector, l.ID)
	f.request(t, collector2, l.ID)
	kept := f.request(t, collector, other.ID)

	_, err := f.listings.Delete(ctx, neighbour, l.ID)
	wantKind(t, err, domain.ErrUnauthorized)

	n, err := f.listings.Delete(ctx, homeowner, l.ID)
	if err != nil || n != 2 {
		t.Fatalf("delete = %d, %v", n, err)
	}
	_, err = f.listings.Get(ctx, l.ID)
	wantKind(t, err, domain.ErrNotFound)
	left, _ := f.store.FindRequests(ctx, domain.RequestFilter{ListingID: l.ID})
	if len(left) != 0 {
		t.Fatalf("%d orphaned requests", len(left))
	}
	if _, err := f.requests.Get(ctx, collector, kept.ID); err != nil {
		t.Fatalf("unrelated request removed: %v", err)
	}

	_, err = f.listings.Delete(ctx, homeowner, l.ID)
	wantKind(t, err, domain.ErrNotFound)
}

// failingDeleteStore fails DeleteListing inside transactions.
type failingDeleteStore struct {
	*store.Memory
}

type failingQueries struct {
	store.Queries
}

func (failingQueries) DeleteListing(context.Context, string) error {
	return errors.New("connection reset")
}

func (s failingDeleteStore) Tx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Memory.Tx(ctx, func(q store.Queries) error {
		return fn(failingQueries{q})
	})
}

func TestCascadeDeleteRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, failingDeleteStore{store.NewMemory()})
	l := f.listing(t, homeowner)
	f.request(t, collector, l.ID)
	f.request(t, collector2, l.ID)

	_, err := f.listings.Delete(ctx, homeowner, l.ID)
	wantKind(t, err, domain.ErrUpstream)

	if _, err := f.listings.Get(ctx, l.ID); err != nil {
		t.Fatalf("listing gone after failed delete: %v", err)
	}
	reqs, _ := f.store.FindRequests(ctx, domain.RequestFilter{ListingID: l.ID})
	if len(reqs) != 2 {
		t.Fatalf("requests after failed delete = %d", len(reqs))
	}
}

func TestCreateListingValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	valid := domain.ListingInput{Title: "t", Description: "d", Price: "10"}

	_, err := f.listings.Create(ctx, corp, valid)
	wantKind(t, err, domain.ErrUnauthorized)

	for name, mutate := range map[string]func(*domain.ListingInput){
		"no title":       func(in *domain.ListingInput) { in.Title = " " },
		"no description": func(in *domain.ListingInput) { in.Description = "" },
		"no price":       func(in *domain.ListingInput) { in.Price = "" },
		"bad price":      func(in *domain.ListingInput) { in.Price = "cheap" },
		"negative price": func(in *domain.ListingInput) { in.Price = "-1" },
		"huge price":     func(in *domain.ListingInput) { in.Price = "1e15" },
		"waste type":     func(in *domain.ListingInput) { in.WasteType = "Nuclear" },
		"relative image": func(in *domain.ListingInput) { in.ImageURL = "bottle.png" },
		"script link":    func(in *domain.ListingInput) { in.ImageURL = "javascript:alert(1)" },
		"ftp link":       func(in *domain.ListingInput) { in.ImageURL = "ftp://files.test/a.png" },
		"bad data uri":   func(in *domain.ListingInput) { in.ImageURL = "data:image/png;base64,@@" },
		"non-image uri":  func(in *domain.ListingInput) { in.ImageURL = "data:text/plain;base64,aGk=" },
	} {
		in := valid
		mutate(&in)
		if _, err := f.listings.Create(ctx, homeowner, in); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if all, _ := f.listings.List(ctx, domain.ListingFilter{}); len(all) != 0 {
		t.Fatalf("invalid input created %d listings", len(all))
	}
}

func TestCreateListingUploadsInlineImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	png := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	l, err := f.listings.Create(ctx, homeowner, domain.ListingInput{
		Title: "Cans", Description: "Aluminium cans", Price: " 12.349 ", WasteType: "metal",
		ImageURL: "data:image/png;base64," + png,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(l.ImageURL, "https://cdn.test/listings/") || f.media.Len() != 1 {
		t.Fatalf("image url %q, %d objects", l.ImageURL, f.media.Len())
	}
	if l.Price != 12.35 || l.WasteType != domain.WasteMetal {
		t.Fatalf("listing %+v", l)
	}

	got, err := f.listings.Get(ctx, l.ID)
	if err != nil || got.ImageURL != l.ImageURL || got.Title != "Cans" {
		t.Fatalf("round trip %+v %v", got, err)
	}
}

func TestInlineImageSizeLimit(t *testing.T) {
	ctx := context.Background()
	up := media.NewMemory("https://cdn.test")
	svc := NewListingService(store.NewMemory(), up, WithMaxImageBytes(16))
	in := domain.ListingInput{Title: "Cans", Description: "Aluminium cans", Price: "1"}

	small := append([]byte{0x89, 'P', 'N', 'G'}, make([]byte, 12)...)
	in.ImageURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(small)
	if _, err := svc.Create(ctx, homeowner, in); err != nil {
		t.Fatalf("image at the limit: %v", err)
	}

	in.ImageURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(append(small, 0))
	_, err := svc.Create(ctx, homeowner, in)
	wantKind(t, err, domain.ErrValidation)

	in.ImageURL = "data:image/png;base64," + strings.Repeat("A", 4096)
	_, err = svc.Create(ctx, homeowner, in)
	wantKind(t, err, domain.ErrValidation)

	if up.Len() != 1 {
		t.Fatalf("stored %d objects, want 1", up.Len())
	}
}

func TestImageLinks(t *testing.T) {
	ctx := context.Background()
	in := domain.ListingInput{Title: "Cans", Description: "Aluminium cans", Price: "1"}
	cases := []struct {
		base, link string
		ok         bool
	}{
		{"https://cdn.test", "https://cdn.test/listings/a.png", true},
		{"https://cdn.test", "http://example.com/a.png", true},
		{"", "memory://media/listings/a.png", true},
		{"https://cdn.test", "memory://media/listings/a.png", false},
		{"", "memory://mediaX/a.png", false},
		{"https://cdn.test", "javascript:alert(1)", false},
		{"https://cdn.test", "https:///no-host.png", false},
		{"https://cdn.test", "ftp://files.test/a.png", false},
	}
	for _, tc := range cases {
		svc := NewListingService(store.NewMemory(), media.NewMemory(tc.base))
		in.ImageURL = tc.link
		l, err := svc.Create(ctx, homeowner, in)
		if tc.ok {
			if err != nil || l.ImageURL != tc.link {
				t.Errorf("%s: %v", tc.link, err)
			}
			continue
		}
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: err = %v, want validation", tc.link, err)
		}
	}
}

func TestUpdateListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)

	title, price := "Glass jars", "7.5"
	got, err := f.listings.Update(ctx, homeowner, l.ID, domain.ListingPatch{Title: &title, Price: &price})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != title || got.Price != 7.5 || got.Description != l.Description || got.Status != domain.ListingOpen {
		t.Fatalf("updated %+v", got)
	}
	if !got.UpdatedAt.After(l.UpdatedAt) {
		t.Fatal("updatedAt not advanced")
	}

	_, err = f.listings.Update(ctx, neighbour, l.ID, domain.ListingPatch{Title: &title})
	wantKind(t, err, domain.ErrUnauthorized)
	image := "https://example.com/a.png"
	_, err = f.listings.Update(ctx, neighbour, l.ID, domain.ListingPatch{ImageURL: &image})
	wantKind(t, err, domain.ErrUnauthorized)
	bad := "-3"
	_, err = f.listings.Update(ctx, homeowner, l.ID, domain.ListingPatch{Price: &bad})
	wantKind(t, err, domain.ErrValidation)
	_, err = f.listings.Update(ctx, homeowner, "missing", domain.ListingPatch{Title: &title})
	wantKind(t, err, domain.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, homeowner)

	_, err := f.listings.UpdateStatus(ctx, homeowner, l.ID, "available")
	wantKind(t, err, domain.ErrValidation)
	_, err = f.listings.UpdateStatus(ctx, neighbour, l.ID, domain.ListingClosed)
	wantKind(t, err, domain.ErrUnauthorized)

	got, err := f.listings.UpdateStatus(ctx, homeowner, l.ID, domain.ListingClosed)
	if err != nil || got.Status != domain.ListingClosed {
		t.Fatalf("close: %+v %v", got, err)
	}
	if got, err = f.listings.UpdateStatus(ctx, homeowner, l.ID, domain.ListingOpen); err != nil || got.Status != domain.ListingOpen {
		t.Fatalf("reopen without accepted request: %+v %v", got, err)
	}

	r := f.request(t, collector, l.ID)
	if _, err := f.requests.Accept(ctx, homeowner, r.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	_, err = f.listings.UpdateStatus(ctx, homeowner, l.ID, domain.ListingOpen)
	wantKind(t, err, domain.ErrInvalidState)
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.listing(t, homeowner)
	b := f.listing(t, neighbour)
	sold := f.listing(t, neighbour)
	own := f.listing(t, collector)

	r := f.request(t, collector2, sold.ID)
	if _, err := f.requests.Accept(ctx, neighbour, r.ID, "x", "5551234567"); err != nil {
		t.Fatal(err)
	}
	f.request(t, collector, a.ID)

	got, err := f.listings.Discover(ctx, collector)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("collector discovers %+v", got)
	}

	got, err = f.listings.Discover(ctx, corp)
	if err != nil || len(got) != 1 || got[0].ID != own.ID {
		t.Fatalf("corporation discovers %+v %v", got, err)
	}

	_, err = f.listings.Discover(ctx, homeowner)
	wantKind(t, err, domain.ErrUnauthorized)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.listing(t, homeowner)
	second := f.listing(t, homeowner)
	f.listing(t, collector)

	mine, err := f.listings.List(ctx, domain.ListingFilter{OwnerID: homeowner.ID})
	if err != nil || len(mine) != 2 || mine[0].ID != second.ID || mine[1].ID != first.ID {
		t.Fatalf("owner listings not newest first: %+v %v", mine, err)
	}
	byRole, _ := f.listings.List(ctx, domain.ListingFilter{OwnerRole: domain.RoleCollector})
	if len(byRole) != 1 {
		t.Fatalf("collector listings = %d", len(byRole))
	}
	_, err = f.listings.List(ctx, domain.ListingFilter{Status: "gone"})
	wantKind(t, err, domain.ErrValidation)
}

func TestRequestReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.listing(t, homeowner)
	b := f.listing(t, neighbour)
	ra := f.request(t, collector, a.ID)
	f.request(t, collector, b.ID)
	f.request(t, collector2, a.ID)

	mine, err := f.requests.ForActor(ctx, collector)
	if err != nil || len(mine) != 2 {
		t.Fatalf("for actor = %d, %v", len(mine), err)
	}
	for _, r := range mine {
		if r.Listing == nil || r.Listing.ID != r.ListingID {
			t.Fatalf("request %s not joined with its listing", r.ID)
		}
	}

	onA, err := f.requests.ForListing(ctx, homeowner, a.ID)
	if err != nil || len(onA) != 2 {
		t.Fatalf("for listing = %d, %v", len(onA), err)
	}
	_, err = f.requests.ForListing(ctx, neighbour, a.ID)
	wantKind(t, err, domain.ErrUnauthorized)

	if got, err := f.requests.Get(ctx, homeowner, ra.ID); err != nil || got.Listing.ID != a.ID {
		t.Fatalf("owner get: %v", err)
	}
	_, err = f.requests.Get(ctx, collector2, ra.ID)
	wantKind(t, err, domain.ErrUnauthorized)
}
