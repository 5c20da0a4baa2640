package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/api/v1/balance", s.getBalance)
	s.router.GET("/api/v1/limit", s.getLimit)
	s.router.GET("/api/v1/stats", s.getStats)
	s.router.GET("/api/v1/bot", s.getBotStatus)
	s.router.GET("/api/v1/transactions", s.getTransactions)
	s.router.POST("/api/v1/session", s.startSession)
	s.router.POST("/api/v1/withdraw", s.withdraw)
	s.router.POST("/api/v1/bot", s.setBotStatus)
	s.router.POST("/api/v1/trial", s.activateTrial)
}
