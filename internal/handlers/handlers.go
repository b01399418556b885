package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"englishmastery/internal/cache"
	"englishmastery/internal/config"
	"englishmastery/internal/middleware"
	"englishmastery/internal/models"
	"englishmastery/internal/queue"
	"englishmastery/internal/realtime"
	"englishmastery/internal/repository"
	"englishmastery/internal/service"
	"englishmastery/internal/storage"
)

const cachePrefix = "em:cache:"

type DailyRefresher interface {
	Refresh(ctx context.Context) (service.RefreshResult, error)
}

type HandlerSet struct {
	log           zerolog.Logger
	cfg           *config.AppConfig
	db            *pgxpool.Pool
	cache         *redis.Client
	bus           *realtime.Bus
	users         *service.UserService
	conversations *service.ConversationService
	messages      *service.MessageService
	challenges    *service.ChallengeService
	daily         DailyRefresher
	posts         *service.PostService
	admin         *service.AdminService
	media         *service.MediaService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, rdb *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	postRepo := repository.NewPostRepository(db)

	jsonCache := cache.NewJSONCache(rdb, cachePrefix)
	bus := realtime.NewBus(rdb, cfg.Realtime.ChannelPrefix, log)
	producer := queue.NewProducer(rdb, cfg.Queue.Stream)

	return HandlerSet{
		log:           log,
		cfg:           cfg,
		db:            db,
		cache:         rdb,
		bus:           bus,
		users:         service.NewUserService(userRepo, profileRepo, log),
		conversations: service.NewConversationService(conversationRepo, userRepo, bus, log),
		messages:      service.NewMessageService(conversationRepo, messageRepo, bus, cfg.Messaging, log),
		challenges:    service.NewChallengeService(challengeRepo, store, producer, jsonCache, log),
		daily:         service.NewDailyRefreshService(challengeRepo, jsonCache, &http.Client{}, cfg.Daily, log),
		posts:         service.NewPostService(postRepo, challengeRepo, log),
		admin:         service.NewAdminService(userRepo, producer, log),
		media:         service.NewMediaService(store, cfg.Storage, log),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	router.POST("/cron/daily-video-refresh", middleware.CronAuth(h.cfg.Security.CronSecret), h.CronDailyRefresh)

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(h.cfg.Security, h.users, h.log))

	v1.GET("/me", h.Me)
	v1.GET("/profile", h.GetProfile)
	v1.PUT("/profile", h.UpdateProfile)
	v1.POST("/profile/avatar", h.UploadAvatar)
	v1.POST("/media", h.UploadMedia)

	conversations := v1.Group("/conversations")
	conversations.GET("", h.ListConversations)
	conversations.POST("", h.StartConversation)
	conversations.GET("/:id", h.GetConversation)
	conversations.POST("/:id/read", h.MarkConversationRead)
	conversations.POST("/:id/close", h.CloseConversation)
	conversations.GET("/:id/messages", h.ListMessages)
	conversations.POST("/:id/messages", h.SendMessage)
	conversations.GET("/:id/stream", h.StreamConversation)

	challenges := v1.Group("/challenges")
	challenges.GET("", h.ListChallenges)
	challenges.GET("/:id", h.GetChallenge)
	challenges.POST("", h.CreateChallenge)
	challenges.DELETE("/:id", h.DeleteChallenge)

	posts := v1.Group("/posts")
	posts.GET("", h.ListPosts)
	posts.POST("", h.CreatePost)
	posts.POST("/:id/like", h.LikePost)
	posts.DELETE("/:id/like", h.UnlikePost)
	posts.GET("/:id/comments", h.ListComments)
	posts.POST("/:id/comments", h.CreateComment)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireRoles(models.UserRoleAdmin))
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/users/export", h.AdminExportUsers)
	admin.POST("/users/:id/approve", h.AdminApproveUser)
	admin.POST("/users/:id/reject", h.AdminRejectUser)
	admin.PUT("/users/:id/role", h.AdminChangeRole)
	admin.PUT("/users/:id/active", h.AdminSetActive)
	admin.GET("/posts", h.AdminListPosts)
	admin.PUT("/posts/:id/hidden", h.AdminSetPostHidden)
	admin.POST("/challenges", h.AdminCreateChallenge)
	admin.PUT("/challenges/:id/active", h.AdminSetChallengeActive)
	admin.POST("/daily-refresh", h.AdminTriggerDailyRefresh)
}
