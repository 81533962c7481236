package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.id, p.name, p.scent, p.description, p.ingredients, p.image,
			       ps.size, ps.price, ps.stock
			FROM products p
			LEFT JOIN product_sizes ps ON ps.product_id = p.id
			ORDER BY p.id ASC, ps.position ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 16)
		for rows.Next() {
			p, size, err := scanProductRow(rows)
			if err != nil {
				return err
			}
			if n := len(out); n == 0 || out[n-1].ID != p.ID {
				out = append(out, p)
			}
			if size != nil {
				last := &out[len(out)-1]
				last.Sizes = append(last.Sizes, *size)
			}
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Product, bool, error) {
	var (
		p     Product
		found bool
	)

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.id, p.name, p.scent, p.description, p.ingredients, p.image,
			       ps.size, ps.price, ps.stock
			FROM products p
			LEFT JOIN product_sizes ps ON ps.product_id = p.id
			WHERE p.id = $1
			ORDER BY ps.position ASC
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			row, size, err := scanProductRow(rows)
			if err != nil {
				return err
			}
			if !found {
				p, found = row, true
			}
			if size != nil {
				p.Sizes = append(p.Sizes, *size)
			}
		}
		return rows.Err()
	})

	if err != nil {
		return Product{}, false, err
	}
	return p, found, nil
}

func scanProductRow(rows *sql.Rows) (Product, *Size, error) {
	var (
		p     Product
		size  sql.NullString
		price sql.NullFloat64
		stock sql.NullInt64
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.Scent, &p.Description, &p.Ingredients, &p.Image,
		&size, &price, &stock); err != nil {
		return Product{}, nil, err
	}
	if !size.Valid {
		return p, nil, nil
	}
	if !price.Valid || !stock.Valid {
		return Product{}, nil, errors.New("product size row incomplete")
	}
	return p, &Size{Size: size.String, Price: price.Float64, Stock: int(stock.Int64)}, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
