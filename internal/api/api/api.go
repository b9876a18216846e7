package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"pizzacup/cmd/middleware"
	"pizzacup/internal/service"
)

type Routers struct {
	Service service.Service
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	v1 := app.Group("/v1")

	v1.GET("/events", r.Service.GetAllEvents)
	v1.POST("/events", r.Service.CreateEvent)
	v1.GET("/events/:id", r.Service.GetEvent)
	v1.PATCH("/events/:id", r.Service.UpdateEvent)
	v1.GET("/events/:id/slots", r.Service.ListEventSlots)

	v1.POST("/categories", r.Service.CreateCategory)
	v1.DELETE("/categories/:id", r.Service.DeleteCategory)
	v1.POST("/products", r.Service.CreateProduct)
	v1.POST("/vouchers", r.Service.CreateVoucher)

	v1.POST("/checkout/single", r.Service.CheckoutSingle)
	v1.POST("/checkout/pack", r.Service.CheckoutPack)
	v1.POST("/checkout/voucher", r.Service.CheckoutVoucher)
	v1.POST("/webhook/payment", r.Service.PaymentWebhook)

	admin := v1.Group("/admin")
	admin.POST("/slots", r.Service.CreateSlots)
	admin.DELETE("/slots/:id", r.Service.DeleteSlot)
	admin.DELETE("/slots", r.Service.DeleteSlotsByDate)
	admin.POST("/assign", r.Service.Assign)
	admin.POST("/unassign", r.Service.Unassign)
	admin.GET("/events/:id/audit", r.Service.Audit)
	admin.POST("/reconcile", r.Service.Reconcile)

	return app
}
