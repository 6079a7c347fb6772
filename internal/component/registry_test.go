package component

import (
	"context"
	"errors"
	"testing"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	components  []Component
	connections []Connection
	// For testing error paths
	componentsErr  error
	connectionsErr error
}

func (m *MockRepository) ListComponents(_ context.Context) ([]Component, error) {
	if m.componentsErr != nil {
		return nil, m.componentsErr
	}
	out := make([]Component, len(m.components))
	copy(out, m.components)
	return out, nil
}

func (m *MockRepository) ListConnections(_ context.Context) ([]Connection, error) {
	if m.connectionsErr != nil {
		return nil, m.connectionsErr
	}
	out := make([]Connection, len(m.connections))
	copy(out, m.connections)
	return out, nil
}

// testTopology is a small microgrid: grid endpoint feeding a meter, with
// an inverter, battery and sensor behind it.
func testTopology() *MockRepository {
	return &MockRepository{
		components: []Component{
			{ID: 1, Name: "grid", Category: CategoryGridEndpoint},
			{ID: 2, Name: "main-meter", Category: CategoryMeter},
			{ID: 3, Name: "pv-inverter", Category: CategoryInverter, Subtype: SubtypeSolarInverter},
			{ID: 4, Name: "battery-1", Category: CategoryBattery},
			{ID: 5, Name: "roof-sensor", Category: CategorySensor},
		},
		connections: []Connection{
			{Start: 1, End: 2},
			{Start: 2, End: 3},
			{Start: 2, End: 4},
		},
	}
}

func loadedRegistry(t *testing.T, repo Repository) *Registry {
	t.Helper()
	r := NewRegistry(repo)
	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return r
}

func TestReload(t *testing.T) {
	r := loadedRegistry(t, testTopology())

	if got := r.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
	if got := len(r.ListConnections()); got != 3 {
		t.Errorf("len(ListConnections()) = %d, want 3", got)
	}
}

func TestReload_RepositoryError(t *testing.T) {
	repoErr := errors.New("db gone")
	r := NewRegistry(&MockRepository{componentsErr: repoErr})

	err := r.Reload(context.Background())
	if !errors.Is(err, repoErr) {
		t.Errorf("Reload() error = %v, want wrapped %v", err, repoErr)
	}
}

func TestReload_Validation(t *testing.T) {
	tests := []struct {
		name    string
		repo    *MockRepository
		wantErr error
	}{
		{
			name: "non-positive id",
			repo: &MockRepository{
				components: []Component{{ID: 0, Category: CategoryMeter}},
			},
			wantErr: ErrInvalidID,
		},
		{
			name: "unknown category",
			repo: &MockRepository{
				components: []Component{{ID: 1, Category: "toaster"}},
			},
			wantErr: ErrInvalidCategory,
		},
		{
			name: "duplicate id",
			repo: &MockRepository{
				components: []Component{
					{ID: 1, Category: CategoryMeter},
					{ID: 1, Category: CategoryBattery},
				},
			},
			wantErr: ErrDuplicateID,
		},
		{
			name: "dangling connection start",
			repo: &MockRepository{
				components:  []Component{{ID: 1, Category: CategoryMeter}},
				connections: []Connection{{Start: 9, End: 1}},
			},
			wantErr: ErrUnknownEndpoint,
		},
		{
			name: "dangling connection end",
			repo: &MockRepository{
				components:  []Component{{ID: 1, Category: CategoryMeter}},
				connections: []Connection{{Start: 1, End: 9}},
			},
			wantErr: ErrUnknownEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.repo)
			err := r.Reload(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Reload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReload_FailureKeepsPreviousSnapshot(t *testing.T) {
	repo := testTopology()
	r := loadedRegistry(t, repo)

	// Break the repository and attempt a reload
	repo.components = []Component{{ID: -1, Category: CategoryMeter}}
	if err := r.Reload(context.Background()); err == nil {
		t.Fatal("Reload() expected validation error")
	}

	// Previous snapshot must still be served
	if got := r.Count(); got != 5 {
		t.Errorf("Count() after failed reload = %d, want 5", got)
	}
}

func TestGet(t *testing.T) {
	r := loadedRegistry(t, testTopology())

	c, err := r.Get(3)
	if err != nil {
		t.Fatalf("Get(3) error = %v", err)
	}
	if c.Category != CategoryInverter {
		t.Errorf("Get(3).Category = %q, want inverter", c.Category)
	}
	if c.Subtype != SubtypeSolarInverter {
		t.Errorf("Get(3).Subtype = %q, want solar", c.Subtype)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := loadedRegistry(t, testTopology())

	_, err := r.Get(999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(999) error = %v, want ErrNotFound", err)
	}
}

func TestList_InsertionOrder(t *testing.T) {
	r := loadedRegistry(t, testTopology())

	list := r.List()
	wantIDs := []int64{1, 2, 3, 4, 5}
	if len(list) != len(wantIDs) {
		t.Fatalf("List() returned %d components, want %d", len(list), len(wantIDs))
	}
	for i, want := range wantIDs {
		if list[i].ID != want {
			t.Errorf("List()[%d].ID = %d, want %d", i, list[i].ID, want)
		}
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	r := loadedRegistry(t, testTopology())

	list := r.List()
	list[0].Name = "mutated"

	fresh, err := r.Get(list[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fresh.Name == "mutated" {
		t.Error("mutating List() result leaked into the registry")
	}
}

func TestCategoryIsValid(t *testing.T) {
	for _, c := range AllCategories() {
		if !c.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", c)
		}
	}
	if Category("toaster").IsValid() {
		t.Error(`IsValid("toaster") = true, want false`)
	}
}
