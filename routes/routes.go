package routes

import (
	"fieldops/constants"
	"fieldops/controllers"
	"fieldops/middleware"
	"fieldops/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, uploader services.Uploader) *gin.Engine {
	r := gin.Default()

	recorder := services.NewEventRecorder(db, uploader)

	authController := controllers.AuthController{DB: db}
	userController := controllers.UserController{DB: db}
	taskController := controllers.TaskController{DB: db, Recorder: recorder}
	eventController := controllers.EventController{DB: db, Recorder: recorder}

	r.POST("/register", authController.Register)
	r.POST("/login", authController.Login)

	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())

	auth.GET("/users", middleware.RoleMiddleware(constants.RoleAdmin), userController.GetUsers)
	auth.PUT("/users/:id", middleware.RoleMiddleware(constants.RoleAdmin), userController.UpdateUser)

	canSchedule := middleware.RoleMiddleware(constants.RoleAdmin, constants.RoleManager)
	auth.POST("/tasks", canSchedule, taskController.CreateTask)
	auth.GET("/tasks", taskController.GetTasks)
	auth.GET("/tasks/:id", taskController.GetTask)
	auth.POST("/tasks/:id/ready", canSchedule, taskController.MarkReady)
	auth.POST("/tasks/:id/hold", taskController.HoldTask)
	auth.POST("/tasks/:id/resume", taskController.ResumeTask)
	auth.GET("/tasks/:id/attachments", taskController.GetTaskAttachments)

	auth.POST("/tasks/:id/arrival", eventController.RecordArrival)
	auth.POST("/tasks/:id/departure", eventController.RecordDeparture)
	auth.POST("/tasks/:id/commentary", eventController.RecordCommentary)
	auth.GET("/tasks/:id/events", eventController.GetTaskEvents)

	return r
}
