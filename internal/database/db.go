package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection before returning.
// The schema this service expects is documented in schema.sql next to
// this file.  Times are stored and compared in UTC; ParseTime lets the
// driver scan DATETIME columns straight into time.Time.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	conf := mysql.NewConfig()
	conf.User = user
	conf.Passwd = pass
	conf.Net = "tcp"
	conf.Addr = host + ":" + port
	conf.DBName = name
	conf.ParseTime = true
	conf.Loc = time.UTC
	conf.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", conf.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
