package referral

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goldvein/goldvein/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return NewStore(db)
}

func TestGetOrCreateCodeIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	first, err := store.GetOrCreateCode("1001")
	if err != nil {
		t.Fatalf("first getOrCreate failed: %v", err)
	}
	if len(first.Code) != 16 {
		t.Fatalf("expected 16-char code, got %q", first.Code)
	}

	second, err := store.GetOrCreateCode("1001")
	if err != nil {
		t.Fatalf("second getOrCreate failed: %v", err)
	}
	if second.Code != first.Code {
		t.Fatalf("expected stable code, got %q then %q", first.Code, second.Code)
	}
}

func TestCodesAreUniquePerUser(t *testing.T) {
	store := newTestStore(t)

	a, _ := store.GetOrCreateCode("1001")
	b, err := store.GetOrCreateCode("1002")
	if err != nil {
		t.Fatalf("getOrCreate for second user failed: %v", err)
	}
	if a.Code == b.Code {
		t.Fatalf("two users got the same code %q", a.Code)
	}
}

func TestFindOwnerByCode(t *testing.T) {
	store := newTestStore(t)

	created, _ := store.GetOrCreateCode("1001")

	owner, err := store.FindOwnerByCode(created.Code)
	if err != nil {
		t.Fatalf("findOwnerByCode failed: %v", err)
	}
	if owner.UserID != "1001" {
		t.Fatalf("expected owner 1001, got %s", owner.UserID)
	}

	if _, err := store.FindOwnerByCode("nosuchcode000000"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestCreateRelationFirstClaimWins(t *testing.T) {
	store := newTestStore(t)

	first, err := store.CreateRelation("1001", ReferredUser{ID: "2001", Username: "miner"}, "")
	if err != nil {
		t.Fatalf("first createRelation failed: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first claim to create a relation")
	}

	// A different referrer cannot overwrite the existing relation.
	second, err := store.CreateRelation("1002", ReferredUser{ID: "2001"}, "")
	if err != nil {
		t.Fatalf("second createRelation failed: %v", err)
	}
	if second.Created {
		t.Fatalf("expected repeat claim to be a no-op")
	}
	if second.Relation.ReferrerID != "1001" {
		t.Fatalf("relation should keep the first referrer, got %s", second.Relation.ReferrerID)
	}
}

func TestCreateRelationRejectsSelfReferral(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateRelation("1001", ReferredUser{ID: "1001"}, ""); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected ErrSelfReferral, got %v", err)
	}

	relation, err := store.GetByReferred("1001")
	if err != nil {
		t.Fatalf("getByReferred failed: %v", err)
	}
	if relation != nil {
		t.Fatalf("self-referral must not create a relation, got %+v", relation)
	}
}

func TestCreateRelationConcurrentClaimsOneWinner(t *testing.T) {
	store := newTestStore(t)

	const claims = 8
	var wg sync.WaitGroup
	results := make([]*CreateResult, claims)
	errs := make([]error, claims)

	// Different referrers race to claim the same referred user; the unique
	// index must let exactly one insert through.
	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.CreateRelation(fmt.Sprintf("10%02d", i), ReferredUser{ID: "2001"}, "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < claims; i++ {
		if errs[i] != nil {
			t.Fatalf("claim %d failed: %v", i, errs[i])
		}
		if results[i].Created {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", winners)
	}

	relation, err := store.GetByReferred("2001")
	if err != nil || relation == nil {
		t.Fatalf("expected a persisted relation, got %+v (%v)", relation, err)
	}
	// Every loser observed the winner's row, not its own attempt.
	for i := 0; i < claims; i++ {
		if results[i].Relation.ReferrerID != relation.ReferrerID {
			t.Fatalf("claim %d saw referrer %s, winner is %s", i, results[i].Relation.ReferrerID, relation.ReferrerID)
		}
	}
}

func TestGetOrCreateCodeConcurrent(t *testing.T) {
	store := newTestStore(t)

	const callers = 8
	var wg sync.WaitGroup
	codes := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := store.GetOrCreateCode("1001")
			if err != nil {
				errs[i] = err
				return
			}
			codes[i] = record.Code
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if codes[i] != codes[0] {
			t.Fatalf("caller %d got code %q, caller 0 got %q", i, codes[i], codes[0])
		}
	}

	owner, err := store.FindOwnerByCode(codes[0])
	if err != nil || owner.UserID != "1001" {
		t.Fatalf("expected single persisted code for 1001, got %+v (%v)", owner, err)
	}
}

func TestGetByReferred(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateRelation("1001", ReferredUser{ID: "2001"}, "spring"); err != nil {
		t.Fatalf("createRelation failed: %v", err)
	}

	relation, err := store.GetByReferred("2001")
	if err != nil {
		t.Fatalf("getByReferred failed: %v", err)
	}
	if relation == nil || relation.ReferrerID != "1001" || relation.Campaign != "spring" {
		t.Fatalf("unexpected relation: %+v", relation)
	}

	missing, err := store.GetByReferred("9999")
	if err != nil {
		t.Fatalf("getByReferred for unknown user failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unreferred user, got %+v", missing)
	}
}

func TestAwardBonusFloorsSmallEarnings(t *testing.T) {
	store := newTestStore(t)
	store.CreateRelation("1001", ReferredUser{ID: "2001"}, "")

	// floor(5 * 0.10) = 0: nothing is awarded and nothing mutates.
	result, err := store.AwardBonus("2001", 5)
	if err != nil {
		t.Fatalf("awardBonus failed: %v", err)
	}
	if result.Awarded || result.Bonus != 0 {
		t.Fatalf("expected no award for tiny earnings, got %+v", result)
	}
	if result.ReferrerID != "1001" {
		t.Fatalf("expected referrer id in result, got %+v", result)
	}

	relation, _ := store.GetByReferred("2001")
	if relation.TotalEarned != 0 || relation.LastBonusAt != nil {
		t.Fatalf("relation mutated despite zero bonus: %+v", relation)
	}
}

func TestAwardBonusAccumulates(t *testing.T) {
	store := newTestStore(t)
	store.CreateRelation("1001", ReferredUser{ID: "2001"}, "")

	result, err := store.AwardBonus("2001", 25)
	if err != nil {
		t.Fatalf("awardBonus failed: %v", err)
	}
	if !result.Awarded || result.Bonus != 2 || result.ReferrerID != "1001" {
		t.Fatalf("unexpected award: %+v", result)
	}

	if _, err := store.AwardBonus("2001", 100); err != nil {
		t.Fatalf("second awardBonus failed: %v", err)
	}

	relation, _ := store.GetByReferred("2001")
	if relation.TotalEarned != 12 {
		t.Fatalf("expected accumulated 12, got %d", relation.TotalEarned)
	}
	if relation.LastBonusAt == nil || relation.LastActivityAt == nil {
		t.Fatalf("expected bonus timestamps to be set: %+v", relation)
	}
}

func TestAwardBonusCapsEnormousEarnings(t *testing.T) {
	store := newTestStore(t)
	store.CreateRelation("1001", ReferredUser{ID: "2001"}, "")

	// Finite but far beyond any reachable balance: the payout is capped
	// instead of overflowing the conversion to whole gold units.
	result, err := store.AwardBonus("2001", math.MaxFloat64)
	if err != nil {
		t.Fatalf("awardBonus failed: %v", err)
	}
	if !result.Awarded || result.Bonus != maxBonus {
		t.Fatalf("expected capped bonus %d, got %+v", maxBonus, result)
	}

	relation, _ := store.GetByReferred("2001")
	if relation.TotalEarned != maxBonus {
		t.Fatalf("expected total earned %d, got %d", maxBonus, relation.TotalEarned)
	}
}

func TestAwardBonusWithoutRelation(t *testing.T) {
	store := newTestStore(t)

	result, err := store.AwardBonus("9999", 100)
	if err != nil {
		t.Fatalf("awardBonus failed: %v", err)
	}
	if result.Awarded || result.ReferrerID != "" {
		t.Fatalf("expected no award for unreferred user, got %+v", result)
	}
}

func TestStatsAggregation(t *testing.T) {
	store := newTestStore(t)
	base := time.Unix(1_700_000_000, 0)
	now := base
	store.nowFn = func() time.Time { return now }

	store.CreateRelation("1001", ReferredUser{ID: "2001", Username: "first"}, "")
	now = base.Add(time.Hour)
	store.CreateRelation("1001", ReferredUser{ID: "2002", Username: "second"}, "spring")
	now = base.Add(2 * time.Hour)
	store.CreateRelation("1001", ReferredUser{ID: "2003", Username: "third"}, "")

	store.AwardBonus("2001", 100)
	store.AwardBonus("2002", 250)

	stats, err := store.StatsFor("1001")
	if err != nil {
		t.Fatalf("statsFor failed: %v", err)
	}
	if stats.TotalReferrals != 3 {
		t.Fatalf("expected 3 referrals, got %d", stats.TotalReferrals)
	}
	if stats.ActiveReferrals != 2 {
		t.Fatalf("expected 2 active referrals, got %d", stats.ActiveReferrals)
	}
	if stats.TotalEarned != 35 {
		t.Fatalf("expected total earned 35, got %d", stats.TotalEarned)
	}
	// Most recent relation first.
	if stats.Referrals[0].ReferredUserID != "2003" || stats.Referrals[2].ReferredUserID != "2001" {
		t.Fatalf("unexpected ordering: %+v", stats.Referrals)
	}
}

func TestStatsForUnknownReferrer(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.StatsFor("9999")
	if err != nil {
		t.Fatalf("statsFor failed: %v", err)
	}
	if stats.TotalReferrals != 0 || stats.ActiveReferrals != 0 || stats.TotalEarned != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if len(stats.Referrals) != 0 {
		t.Fatalf("expected no referrals, got %d", len(stats.Referrals))
	}
}
