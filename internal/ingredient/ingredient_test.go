package ingredient

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Ingredient
		wantErr bool
	}{
		{"valid", Ingredient{Name: "flour", Quantity: 500, Unit: "g"}, false},
		{"zero quantity", Ingredient{Name: "salt"}, false},
		{"blank name", Ingredient{Name: "   ", Quantity: 1}, true},
		{"negative quantity", Ingredient{Name: "sugar", Quantity: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	in := Ingredient{Name: "  butter ", Unit: " g ", Quantity: 1}
	_ = in.Validate()
	if in.Name != "butter" || in.Unit != "g" {
		t.Errorf("Validate() did not trim: %+v", in)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	flour, err := s.Create(ctx, Ingredient{Name: "flour", Quantity: 500, Unit: "g"})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if flour.ID == "" {
		t.Fatal("Create() did not assign an id")
	}
	if _, err := s.Create(ctx, Ingredient{Name: "eggs", Quantity: 2}); err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if _, err := s.Create(ctx, Ingredient{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Create(empty) = %v, want ErrInvalid", err)
	}

	list, _ := s.List(ctx)
	if len(list) != 2 || list[0].Name != "eggs" || list[1].Name != "flour" {
		t.Errorf("List() = %+v, want eggs then flour", list)
	}

	flour.Quantity = 750
	if _, err := s.Update(ctx, flour); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	got, err := s.Get(ctx, flour.ID)
	if err != nil || got.Quantity != 750 {
		t.Errorf("Get() = %+v, %v", got, err)
	}

	if _, err := s.Update(ctx, Ingredient{ID: "missing", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, flour.ID); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := s.Get(ctx, flour.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, flour.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) = %v, want ErrNotFound", err)
	}
}

func newMock(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestPGStoreSchema(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingredients").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Errorf("EnsureSchema() = %v", err)
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingredients").WillReturnError(errors.New("denied"))
	if err := s.EnsureSchema(context.Background()); err == nil {
		t.Error("EnsureSchema() should fail")
	}
}

func TestPGStoreList(t *testing.T) {
	s, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "name", "quantity", "unit"}).
		AddRow("a", "eggs", 2.0, "").
		AddRow("b", "flour", 500.0, "g")
	mock.ExpectQuery("SELECT id, name, quantity, unit FROM ingredients ORDER BY name").WillReturnRows(rows)

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(list) != 2 || list[1].Unit != "g" || list[1].Quantity != 500 {
		t.Errorf("List() = %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGStoreGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT id, name, quantity, unit FROM ingredients WHERE id").
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity", "unit"}).AddRow("a", "eggs", 2.0, ""))

		got, err := s.Get(context.Background(), "a")
		if err != nil || got.Name != "eggs" {
			t.Errorf("Get() = %+v, %v", got, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT id, name, quantity, unit FROM ingredients WHERE id").
			WithArgs("zz").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity", "unit"}))

		if _, err := s.Get(context.Background(), "zz"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() = %v, want ErrNotFound", err)
		}
	})
}

func TestPGStoreWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("INSERT INTO ingredients").
			WithArgs(sqlmock.AnyArg(), "flour", 500.0, "g").
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := s.Create(ctx, Ingredient{Name: " flour ", Quantity: 500, Unit: "g"})
		if err != nil || got.ID == "" || got.Name != "flour" {
			t.Errorf("Create() = %+v, %v", got, err)
		}
	})

	t.Run("create rejects invalid without touching the db", func(t *testing.T) {
		s, mock := newMock(t)
		if _, err := s.Create(ctx, Ingredient{Quantity: 1}); !errors.Is(err, ErrInvalid) {
			t.Errorf("Create() = %v, want ErrInvalid", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected db calls: %v", err)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE ingredients SET").
			WithArgs("a", "eggs", 3.0, "").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if _, err := s.Update(ctx, Ingredient{ID: "a", Name: "eggs", Quantity: 3}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("DELETE FROM ingredients").WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
		if err := s.Delete(ctx, "a"); err != nil {
			t.Errorf("Delete() = %v", err)
		}
	})

	t.Run("delete error", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("DELETE FROM ingredients").WithArgs("a").WillReturnError(errors.New("locked"))
		if err := s.Delete(ctx, "a"); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() = %v, want wrapped db error", err)
		}
	})
}
