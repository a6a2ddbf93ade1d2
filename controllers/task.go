package controllers

import (
	"net/http"
	"time"

	"fieldops/constants"
	"fieldops/middleware"
	"fieldops/models"
	"fieldops/services"
	"fieldops/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TaskController struct {
	DB       *gorm.DB
	Recorder *services.EventRecorder
}

func (tc *TaskController) CreateTask(c *gin.Context) {
	var input struct {
		Title        string     `json:"title" binding:"required"`
		Description  string     `json:"description"`
		CustomerName string     `json:"customer_name"`
		Address      string     `json:"address"`
		Latitude     float64    `json:"latitude"`
		Longitude    float64    `json:"longitude"`
		ScheduledAt  *time.Time `json:"scheduled_at"`
		AssigneeIDs  []uint     `json:"assignee_ids"`
	}

	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID, _ := middleware.Actor(c)

	var assignees []models.User
	if len(input.AssigneeIDs) > 0 {
		if err := tc.DB.Find(&assignees, input.AssigneeIDs).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignee ids"})
			return
		}
	}

	task := models.Task{
		Title:        input.Title,
		Description:  input.Description,
		CustomerName: input.CustomerName,
		Address:      input.Address,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		ScheduledAt:  input.ScheduledAt,
		Status:       constants.TaskStatusPreparing,
		CreatedByID:  actorID,
		Assignees:    assignees,
	}

	if err := tc.DB.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (tc *TaskController) GetTasks(c *gin.Context) {
	actorID, role := middleware.Actor(c)

	var tasks []models.Task
	q := tc.DB.Preload("Assignees")
	if !utils.IsElevatedRole(role) {
		q = q.
			Joins("LEFT JOIN task_assignments ta ON ta.task_id = tasks.id").
			Where("tasks.created_by_id = ? OR ta.user_id = ?", actorID, actorID).
			Distinct("tasks.*")
	}
	if err := q.Find(&tasks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (tc *TaskController) GetTask(c *gin.Context) {
	id := c.Param("id")

	var task models.Task
	if err := tc.DB.Preload("Assignees").First(&task, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	actorID, role := middleware.Actor(c)
	if !utils.CanAccessTask(task, actorID, role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (tc *TaskController) transition(c *gin.Context, toStatus string) {
	taskID, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		Note string `json:"note"`
	}
	// Body is optional for transitions.
	_ = c.ShouldBindJSON(&input)

	actorID, role := middleware.Actor(c)

	result, err := tc.Recorder.TransitionTask(services.TransitionInput{
		TaskID:    taskID,
		ActorID:   actorID,
		ActorRole: role,
		ToStatus:  toStatus,
		Note:      input.Note,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": result.Task, "record": result.Record})
}

func (tc *TaskController) MarkReady(c *gin.Context) {
	tc.transition(c, constants.TaskStatusReady)
}

func (tc *TaskController) HoldTask(c *gin.Context) {
	tc.transition(c, constants.TaskStatusOnHold)
}

func (tc *TaskController) ResumeTask(c *gin.Context) {
	tc.transition(c, constants.TaskStatusInProgress)
}

func (tc *TaskController) GetTaskAttachments(c *gin.Context) {
	id := c.Param("id")

	var task models.Task
	if err := tc.DB.Preload("Assignees").First(&task, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	actorID, role := middleware.Actor(c)
	if !utils.CanAccessTask(task, actorID, role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this task"})
		return
	}

	var attachments []models.Attachment
	if err := tc.DB.Where("task_id = ?", task.ID).Order("id").Find(&attachments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, attachments)
}
