package server

// registerRoutes wires the API surface onto the mux.
func (s *Server) registerRoutes() {
	// Dashboard
	s.mux.HandleFunc("/api/announcements", s.app.AnnouncementHandler.List)
	s.mux.HandleFunc("/api/announcements/stats", s.app.AnnouncementHandler.Stats)

	// Pipeline triggers
	s.mux.HandleFunc("/api/ingest/trigger", s.app.PipelineHandler.TriggerIngest)
	s.mux.HandleFunc("/api/classify/trigger", s.app.PipelineHandler.TriggerClassify)

	// Operational
	s.mux.HandleFunc("/api/health", s.app.StatusHandler.Health)
	s.mux.HandleFunc("/api/status", s.app.StatusHandler.Status)
	s.mux.HandleFunc("/api/version", s.app.StatusHandler.Version)

	// Live updates
	s.mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)
}
