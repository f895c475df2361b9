package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/creatorsgardenofficial/garden-messaging/internal/config"
	"github.com/creatorsgardenofficial/garden-messaging/internal/database"
	"github.com/creatorsgardenofficial/garden-messaging/internal/repository"
	postgresrepo "github.com/creatorsgardenofficial/garden-messaging/internal/repository/postgres"
	redisrepo "github.com/creatorsgardenofficial/garden-messaging/internal/repository/redis"
	sqliterepo "github.com/creatorsgardenofficial/garden-messaging/internal/repository/sqlite"
	"github.com/creatorsgardenofficial/garden-messaging/internal/service"
	"github.com/creatorsgardenofficial/garden-messaging/internal/transport/http/handlers"
	"github.com/creatorsgardenofficial/garden-messaging/internal/transport/http/middleware"
)

type repos struct {
	users         repository.UserDirectory
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	groups        repository.GroupChatRepository
	groupMessages repository.GroupMessageRepository
	blocks        repository.BlockRepository
}

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	r, cleanup, err := openRepos(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("opening storage")
	}
	defer cleanup()
	log.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	// Read-state cache is optional; without redis unread counts are
	// computed on every poll.
	var readState repository.ReadStateCache
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	if rdb != nil {
		readState = redisrepo.NewReadStateCache(rdb)
		log.Info().Msg("read-state cache enabled")
	}

	// Services
	convService := service.NewConversationService(r.conversations, r.messages, r.users, r.blocks, readState)
	groupService := service.NewGroupService(r.groups, r.groupMessages, r.users, readState)
	blockService := service.NewBlockService(r.blocks, r.users)
	directoryService := service.NewDirectoryService(r.users)

	// Handlers
	convHandler := handlers.NewConversationHandler(convService)
	groupHandler := handlers.NewGroupHandler(groupService)
	blockHandler := handlers.NewBlockHandler(blockService)
	directoryHandler := handlers.NewDirectoryHandler(directoryService)

	auth := middleware.Auth(cfg.JWTSecret)
	active := middleware.RequireActive(r.users)
	protect := func(h http.HandlerFunc) http.Handler {
		return auth(active(h))
	}

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	// Protected - Direct conversations
	mux.Handle("GET /api/v1/users/{id}/conversation", protect(convHandler.GetConversation))
	mux.Handle("POST /api/v1/users/{id}/messages", protect(convHandler.SendMessage))
	mux.Handle("GET /api/v1/conversations", protect(convHandler.ListConversations))
	mux.Handle("GET /api/v1/conversations/{id}/messages", protect(convHandler.ListMessages))
	mux.Handle("POST /api/v1/conversations/{id}/read", protect(convHandler.MarkRead))
	mux.Handle("PATCH /api/v1/messages/{id}", protect(convHandler.EditMessage))
	mux.Handle("DELETE /api/v1/messages/{id}", protect(convHandler.DeleteMessage))

	// Protected - Group chats
	mux.Handle("POST /api/v1/groups", protect(groupHandler.Create))
	mux.Handle("GET /api/v1/groups", protect(groupHandler.List))
	mux.Handle("GET /api/v1/groups/{id}", protect(groupHandler.Get))
	mux.Handle("POST /api/v1/groups/{id}/participants", protect(groupHandler.AddParticipant))
	mux.Handle("POST /api/v1/groups/{id}/leave", protect(groupHandler.Leave))
	mux.Handle("POST /api/v1/groups/{id}/messages", protect(groupHandler.SendMessage))
	mux.Handle("GET /api/v1/groups/{id}/messages", protect(groupHandler.ListMessages))
	mux.Handle("POST /api/v1/groups/{id}/read", protect(groupHandler.MarkRead))
	mux.Handle("PATCH /api/v1/group-messages/{id}", protect(groupHandler.EditMessage))
	mux.Handle("DELETE /api/v1/group-messages/{id}", protect(groupHandler.DeleteMessage))

	// Protected - Blocks
	mux.Handle("POST /api/v1/blocks", protect(blockHandler.Block))
	mux.Handle("DELETE /api/v1/blocks/{id}", protect(blockHandler.Unblock))
	mux.Handle("GET /api/v1/blocks", protect(blockHandler.List))

	// Protected - User directory
	mux.Handle("GET /api/v1/users", protect(directoryHandler.Search))
	mux.Handle("GET /api/v1/users/{id}", protect(directoryHandler.Get))

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("starting server")
	if err := http.ListenAndServe(addr, middleware.CORS(mux)); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func openRepos(cfg *config.Config) (*repos, func(), error) {
	switch cfg.DBDriver {
	case "sqlite":
		store, err := sqliterepo.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return &repos{
			users:         store.Users(),
			conversations: store.Conversations(),
			messages:      store.Messages(),
			groups:        store.Groups(),
			groupMessages: store.GroupMessages(),
			blocks:        store.Blocks(),
		}, func() {}, nil
	case "postgres":
		pool, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgresrepo.Migrate(context.Background(), pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return &repos{
			users:         postgresrepo.NewUserRepo(pool),
			conversations: postgresrepo.NewConversationRepo(pool),
			messages:      postgresrepo.NewMessageRepo(pool),
			groups:        postgresrepo.NewGroupRepo(pool),
			groupMessages: postgresrepo.NewGroupMessageRepo(pool),
			blocks:        postgresrepo.NewBlockRepo(pool),
		}, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}
