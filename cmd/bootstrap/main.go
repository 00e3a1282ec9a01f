// Command bootstrap provisions a tenant: it creates a parking lot and its
// first administrator.  There is no registration endpoint, so this is how
// the first account of a parking comes to exist.
//
//	go run ./cmd/bootstrap -name "Downtown" -spots 120 -email admin@example.com -password secret
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

func main() {
	name := flag.String("name", "", "parking name (unique)")
	spots := flag.Int("spots", 0, "total spots")
	email := flag.String("email", "", "administrator email")
	password := flag.String("password", "", "administrator password")
	role := flag.String("role", model.RoleAdmin, "role of the account: admin, employer or client")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" || *spots < 0 {
		flag.Usage()
		log.Fatal("bootstrap: -name, -email and -password are required and -spots must be >= 0")
	}
	switch *role {
	case model.RoleAdmin, model.RoleEmployer, model.RoleClient:
	default:
		log.Fatalf("bootstrap: unknown role %q", *role)
	}

	config.LoadDotEnv()
	cfg := config.Load()
	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
	if err != nil {
		log.Fatalf("bootstrap: database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	parking, err := repository.NewParkingRepo(db).Create(ctx, *name, *spots, 0)
	if err != nil {
		log.Fatalf("bootstrap: create parking: %v", err)
	}
	uid, err := repository.NewUserRepo(db).Create(ctx, *email, *password, *role, parking.ID, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("bootstrap: create user: %v", err)
	}
	log.Printf("bootstrap: parking %d (%s, %d spots) with %s user %d <%s>",
		parking.ID, parking.Name, parking.TotalSpots, *role, uid, *email)
}
