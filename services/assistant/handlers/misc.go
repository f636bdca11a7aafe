// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

// HealthCheck reports liveness. It deliberately does not touch the
// vector store: the service is useful for triggering and monitoring
// even while the database restarts.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HealthResponse{Status: "healthy"})
}
