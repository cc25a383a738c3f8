package web

import "github.com/gin-gonic/gin"

// registerRoutes sets up every page on the Gin router.
func (s *server) registerRoutes(router *gin.Engine) {
	router.Use(s.loadUser())
	router.NoRoute(s.handleNoRoute)

	// Public pages.
	router.GET("/", s.handleHome)
	router.GET("/contact", s.handleContact)
	router.GET("/signup", s.handleSignupForm)
	router.POST("/signup", s.handleSignup)
	router.GET("/login", s.handleLoginForm)
	router.POST("/login", s.handleLogin)
	router.POST("/logout", s.handleLogout)
	router.GET("/items", s.handleBrowse)
	router.GET("/items/:id", s.handleItemDetail)

	// Pages that need a signed-in user.
	auth := router.Group("/", s.requireLogin())
	auth.GET("/sell", s.handleSellForm)
	auth.POST("/sell", s.handleSell)
	auth.GET("/items/:id/edit", s.handleEditForm)
	auth.POST("/items/:id/edit", s.handleEdit)
	auth.POST("/items/:id/delete", s.handleDelete)
	auth.GET("/dashboard", s.handleDashboard)

	auth.GET("/items/:id/conversation", s.handleNewConversationForm)
	auth.POST("/items/:id/conversation", s.handleStartConversation)
	auth.GET("/inbox", s.handleInbox)
	auth.GET("/inbox/:id", s.handleThread)
	auth.POST("/inbox/:id", s.handlePostMessage)
}
