package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/notabene-social/notabene/activitypub"
	"github.com/notabene-social/notabene/db"
	"github.com/notabene-social/notabene/domain"
	"github.com/notabene-social/notabene/util"
	"github.com/notabene-social/notabene/web"
)

func main() {
	createUser := flag.String("create-user", "", "create a local actor with the given username and exit")
	flag.Parse()

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatal("Could not read configuration", "err", err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database, err := db.Open(util.ResolveFilePath(conf.Conf.DbFile))
	if err != nil {
		log.Fatal("Could not open database", "err", err)
	}
	defer database.Close()

	if *createUser != "" {
		if err := bootstrapAccount(database, *createUser); err != nil {
			log.Fatal("Could not create actor", "username", *createUser, "err", err)
		}
		return
	}

	resolver := activitypub.NewResolver(database)
	deliverer := activitypub.NewDeliverer(database, conf)
	notes := activitypub.NewNotes(database, resolver, deliverer, conf)
	inbox := activitypub.NewInbox(database, conf, resolver, deliverer, notes)

	server := web.NewServer(conf, database, inbox, notes)
	startServing(server, conf)
}

// bootstrapAccount creates a local actor with a fresh RSA key pair.
func bootstrapAccount(database *db.DB, username string) error {
	existing, err := database.ReadAccountByUsername(username)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("actor %s already exists", username)
	}

	keys, err := util.GeneratePemKeypair()
	if err != nil {
		return err
	}

	acc := &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		PublicKeyPem:  keys.Public,
		PrivateKeyPem: keys.Private,
		CreatedAt:     time.Now().UTC(),
	}
	if err := database.CreateAccount(acc); err != nil {
		return err
	}

	log.Info("Created actor", "username", username)
	return nil
}

func startServing(server *web.Server, conf *util.AppConfig) {
	addr := fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Starting HTTP server", "addr", addr, "domain", conf.Conf.Domain)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", "err", err)
		}
	}()

	<-done
	log.Info("Stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("Shutdown failed", "err", err)
	}
}
