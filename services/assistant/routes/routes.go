// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborml/codeassist/services/assistant/handlers"
	"github.com/harborml/codeassist/services/vectorstore"
)

func SetupRoutes(router *gin.Engine, store vectorstore.Store, pipeline handlers.QueryPipeline,
	manager handlers.IndexManager) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", handlers.HandleQuery(pipeline))
		v1.GET("/documents", handlers.ListSources(store))
		v1.DELETE("/documents", handlers.DeleteBySource(store))

		index := v1.Group("/index")
		{
			index.POST("", handlers.TriggerIndex(manager))
			index.GET("/status", handlers.IndexStatus(manager, store))
		}
	}
}
