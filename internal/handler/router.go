package handler

import (
	"paydash-go/internal/middleware"
	"paydash-go/internal/service"
	"paydash-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// Services 汇总路由需要的全部业务服务。
type Services struct {
	Client      service.ClientService
	Session     service.SessionService
	Chat        service.ChatService
	Search      service.SearchService
	Interaction service.InteractionService
}

// RegisterRoutes 注册全部路由。
func RegisterRoutes(r *gin.Engine, svc Services, jwtManager *token.JWTManager) {
	clientHandler := NewClientHandler(svc.Client)
	sessionHandler := NewSessionHandler(svc.Session)
	chatHandler := NewChatHandler(svc.Chat, jwtManager)
	catalogHandler := NewCatalogHandler()
	searchHandler := NewSearchHandler(svc.Search)
	interactionHandler := NewInteractionHandler(svc.Interaction)

	apiV1 := r.Group("/api/v1")
	{
		// 无需认证的路由
		apiV1.POST("/clients", clientHandler.Register)
		apiV1.GET("/catalog", catalogHandler.List)
		apiV1.GET("/catalog/:name", catalogHandler.Get)

		authed := apiV1.Group("/")
		authed.Use(middleware.ClientAuth(jwtManager))
		{
			sessions := authed.Group("/sessions")
			{
				sessions.GET("", sessionHandler.List)
				sessions.POST("", sessionHandler.Create)
				sessions.DELETE("/:id", sessionHandler.Delete)
				sessions.PUT("/:id/current", sessionHandler.Select)
				sessions.GET("/:id/messages", sessionHandler.Messages)
				sessions.POST("/:id/messages", chatHandler.PostMessage)
				sessions.GET("/:id/suggestions", sessionHandler.Suggestions)
			}
			authed.GET("/search", searchHandler.Search)
			authed.GET("/interactions", interactionHandler.List)
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:token", chatHandler.Handle)
}
