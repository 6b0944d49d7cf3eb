package api

import (
	apirouter "github.com/mrz1836/go-api-router"
)

// RegisterRoutes register all the package specific routes
func RegisterRoutes(router *apirouter.Router, svc *Service) {

	// Extract from a raw coinbase transaction
	router.HTTPRouter.GET("/v1/minerid", router.Request(svc.extract))
	router.HTTPRouter.POST("/v1/minerid", router.Request(svc.extract))

	// Extract from the coinbase of a block
	router.HTTPRouter.GET("/v1/minerid/:height", router.Request(svc.byHeight))

	// Identity history
	router.HTTPRouter.GET("/v1/identity/:minerId", router.Request(svc.identity))
	router.HTTPRouter.GET("/v1/identities", router.Request(svc.identities))
}
