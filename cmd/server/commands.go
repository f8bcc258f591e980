package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"dialogues/internal/config"
	"dialogues/internal/service"
	"dialogues/pkg/jwt"
	"dialogues/pkg/logger"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return errors.New("migrate requires postgres storage")
			}

			log := logger.New(cfg.Log.Level)
			store, err := openStorage(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(c.Context); err != nil {
				return err
			}
			log.Info("Database schema applied")
			return nil
		},
	}
}

// tokenCommand выпускает токен для локальной разработки, когда внешнего
// сервиса аутентификации нет
func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint an access token for development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-id", Usage: "User `UUID`, random when empty"},
			&cli.StringFlag{Name: "username", Usage: "Username", Required: true},
			&cli.StringFlag{Name: "display-name", Usage: "Display name"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			userID := uuid.New()
			if raw := c.String("user-id"); raw != "" {
				if userID, err = uuid.Parse(raw); err != nil {
					return fmt.Errorf("invalid user id: %w", err)
				}
			}

			token, err := jwt.GenerateAccessToken(userID, c.String("username"), c.String("display-name"),
				cfg.JWT.AccessSecret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

// purgeUserCommand удаляет пользователя. Его диалоги переходят служебному
// пользователю "deleted"
func purgeUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge-user",
		Usage: "Delete a user and hand their dialogues over to the deleted-user placeholder",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-id", Usage: "User `UUID`", Required: true},
		},
		Action: func(c *cli.Context) error {
			userID, err := uuid.Parse(c.String("user-id"))
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return errors.New("purge-user requires postgres storage")
			}

			log := logger.New(cfg.Log.Level)
			store, err := openStorage(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			return service.NewUserService(store.repos.User, log).Delete(c.Context, userID)
		},
	}
}
