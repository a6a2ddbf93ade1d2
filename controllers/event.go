package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"fieldops/middleware"
	"fieldops/models"
	"fieldops/services"
	"fieldops/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type EventController struct {
	DB       *gorm.DB
	Recorder *services.EventRecorder
}

// eventForm is the multipart shape shared by all presence endpoints:
// lat/lng and notes (or text) as form fields, files under "files".
func (ec *EventController) eventForm(c *gin.Context, notesField string) (services.EventInput, []multipart.File, bool) {
	var in services.EventInput

	taskID, ok := parseID(c)
	if !ok {
		return in, nil, false
	}
	in.TaskID = taskID
	in.ActorID, in.ActorRole = middleware.Actor(c)
	in.Notes = c.PostForm(notesField)

	if latStr := c.PostForm("latitude"); latStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude"})
			return in, nil, false
		}
		in.Latitude = &lat
	}
	if lngStr := c.PostForm("longitude"); lngStr != "" {
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid longitude"})
			return in, nil, false
		}
		in.Longitude = &lng
	}

	form, err := c.MultipartForm()
	var opened []multipart.File
	if err == nil && form != nil {
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file: " + fh.Filename})
				return in, opened, false
			}
			opened = append(opened, f)
			in.Files = append(in.Files, services.FileInput{
				FileName: fh.Filename,
				MimeType: fh.Header.Get("Content-Type"),
				Reader:   f,
			})
		}
	}

	return in, opened, true
}

func (ec *EventController) record(c *gin.Context, cfg services.EventConfig, notesField string) {
	in, opened, ok := ec.eventForm(c, notesField)
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	if !ok {
		return
	}

	result, err := ec.Recorder.RecordEvent(c.Request.Context(), in, cfg)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":   result.Record,
		"task":     result.Task,
		"warnings": result.Warnings,
	})
}

func (ec *EventController) RecordArrival(c *gin.Context) {
	ec.record(c, services.ArrivalEvent, "notes")
}

func (ec *EventController) RecordDeparture(c *gin.Context) {
	ec.record(c, services.DepartureEvent, "notes")
}

func (ec *EventController) RecordCommentary(c *gin.Context) {
	ec.record(c, services.CommentaryEvent, "text")
}

// GetTaskEvents lists a task's activity records newest-first, optionally
// filtered by event type and actor.
func (ec *EventController) GetTaskEvents(c *gin.Context) {
	taskID, ok := parseID(c)
	if !ok {
		return
	}

	var task models.Task
	if err := ec.DB.Preload("Assignees").First(&task, taskID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	actorID, role := middleware.Actor(c)
	if !utils.CanAccessTask(task, actorID, role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this task"})
		return
	}

	filter := services.EventFilter{EventType: c.Query("type")}
	if v := c.Query("actor_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid actor_id"})
			return
		}
		filter.ActorID = uint(id)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		filter.Offset = n
	}

	records, err := ec.Recorder.Log.BySubject(services.TaskSubjectKey(taskID), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}
