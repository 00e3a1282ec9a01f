package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Options identifies the database to connect to.
type Options struct {
	Driver string // "mysql" or "postgres"
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// Open connects to MySQL or PostgreSQL and verifies the connection.
// Repositories write queries with '?' placeholders and rebind them for the
// driver, so the rest of the code does not care which one is used.
func Open(o Options) (*sqlx.DB, error) {
	driver, dsn, err := dataSource(o)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func dataSource(o Options) (driver, dsn string, err error) {
	switch o.Driver {
	case "", "mysql":
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC hands wall clocks back untouched
		// clientFoundRows=true -> RowsAffected counts matched rows, so a no-op UPDATE is not "missing"
		return "mysql", fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, o.Host, o.Port, o.Name), nil
	case "postgres", "postgresql":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(o.User, o.Pass),
			Host:     o.Host + ":" + o.Port,
			Path:     "/" + o.Name,
			RawQuery: "sslmode=disable&timezone=UTC",
		}
		if o.Pass == "" {
			u.User = url.User(o.User)
		}
		return "postgres", u.String(), nil
	}
	return "", "", fmt.Errorf("unsupported DB_DRIVER %q", o.Driver)
}
