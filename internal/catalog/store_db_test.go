package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var productCols = []string{"id", "name", "scent", "description", "ingredients", "image", "size", "price", "stock"}

func TestPostgresStore_ListGroupsSizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM products p").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "Lavender", "Lavender", "d", "i", "l.jpg", "S", 120000.0, 12).
			AddRow(1, "Lavender", "Lavender", "d", "i", "l.jpg", "L", 220000.0, 4).
			AddRow(2, "Bare", "None", "d", "i", "b.jpg", nil, nil, nil))

	got, err := NewPostgresStore(db).ListSortedByID(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if len(got[0].Sizes) != 2 || got[0].Sizes[1].Size != "L" || got[0].Sizes[1].Stock != 4 {
		t.Fatalf("sizes=%+v", got[0].Sizes)
	}
	if len(got[1].Sizes) != 0 {
		t.Fatalf("bare sizes=%+v", got[1].Sizes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("WHERE p.id = \\$1").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(3, "Cedar", "Cedarwood", "d", "i", "c.jpg", "M", 180000.0, 2))

	p, found, err := NewPostgresStore(db).Get(context.Background(), 3)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	size, err := p.DefaultSize()
	if err != nil || size.Price != 180000 {
		t.Fatalf("size=%+v err=%v", size, err)
	}
}

func TestPostgresStore_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("WHERE p.id = \\$1").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(productCols))

	_, found, err := NewPostgresStore(db).Get(context.Background(), 9)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestPostgresStore_IncompleteSizeRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM products p").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "Lavender", "Lavender", "d", "i", "l.jpg", "S", nil, 12))

	if _, err := NewPostgresStore(db).ListSortedByID(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
