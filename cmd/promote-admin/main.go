package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"madrasah-backend/config"
	"madrasah-backend/entity"
	"madrasah-backend/events"
	"madrasah-backend/store"
)

func main() {
	email := flag.String("email", "", "Email address of the user to change")
	role := flag.String("role", string(entity.RoleAdmin), "Role to assign (admin, teacher or student)")
	flag.Parse()

	if *email == "" {
		fmt.Println("--email is required")
		os.Exit(1)
	}
	r, err := entity.ParseRole(*role)
	if err != nil {
		fmt.Println("--role invalid:", err)
		os.Exit(1)
	}

	if err := run(*email, r); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("%s is now %s\n", *email, r)
}

// run owns every connection so they are closed before main exits.
func run(email string, role entity.Role) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.Connect(ctx, cfg.MongoConnString(), cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	var p events.Publisher = events.Nop{}
	if cfg.RabbitMQ != "" {
		a, err := events.Dial(ctx, cfg.RabbitMQ)
		if err != nil {
			return errors.Wrap(err, "connecting to rabbitmq")
		}
		defer a.Close()
		p = a
	}

	return promote(ctx, db.Collection(store.UsersCollection), p, email, role)
}

// promote sets the role of the user with email and announces the change the
// same way the HTTP role endpoints do.
func promote(ctx context.Context, users store.Collection, p events.Publisher, email string, role entity.Role) error {
	u, err := users.FindOne(ctx, entity.Document{entity.EmailField: email})
	if err != nil {
		return errors.Wrapf(err, "looking up %s", email)
	}
	id, ok := u[entity.IDField].(primitive.ObjectID)
	if !ok {
		return errors.Errorf("user %s has a non ObjectID _id", email)
	}

	ack, err := users.UpdateOne(ctx, id, entity.Document{entity.RoleField: string(role)})
	if err != nil {
		return errors.Wrapf(err, "updating %s", email)
	}
	if ack.ModifiedCount == 0 {
		return nil
	}

	a := events.NewActivity(store.UsersCollection, entity.ActionRoleChanged, id)
	a.Role = role
	if err := p.Publish(ctx, a); err != nil {
		fmt.Println("role changed, but publishing the activity failed:", err)
	}
	return nil
}
