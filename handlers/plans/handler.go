package plans

import (
	"net/http"

	"github.com/amitthakurameotech-cmyk/subscription-plan/db"
	"github.com/amitthakurameotech-cmyk/subscription-plan/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// @Summary Create a new plan
// @Description Create a new billing plan with the provided information
// @Tags plans
// @Accept json
// @Produce json
// @Param plan body models.PlanCreate true "Plan information"
// @Security BearerAuth
// @Success 201 {object} models.Plan
// @Failure 400 {object} map[string]string "error: Invalid input"
// @Failure 401 {object} map[string]string "error: Unauthorized"
// @Failure 500 {object} map[string]string "error: Error message"
// @Router /plans [post]
func CreatePlan(c *gin.Context) {
	var planCreate models.PlanCreate
	if err := c.ShouldBindJSON(&planCreate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input: " + err.Error(),
		})
		return
	}

	var existingPlan models.Plan
	result := db.DB.First(&existingPlan, "name = ?", planCreate.Name)
	if result.Error == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Plan already exists",
		})
		return
	}

	plan := models.Plan{
		Name:          planCreate.Name,
		Description:   planCreate.Description,
		Price:         planCreate.Price,
		Currency:      planCreate.Currency,
		Interval:      planCreate.Interval,
		StripePriceId: planCreate.StripePriceId,
		Active:        true,
	}

	if err := db.DB.Create(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating plan: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// @Summary Get all plans
// @Description Retrieve all billing plans
// @Tags plans
// @Produce json
// @Success 200 {array} models.Plan
// @Failure 500 {object} map[string]string "error: Error message"
// @Router /plans [get]
func GetAllPlans(c *gin.Context) {
	var plans []models.Plan

	result := db.DB.Order("name ASC").Find(&plans)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": result.Error.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, plans)
}

// @Summary Get a plan
// @Description Retrieve one billing plan by its id
// @Tags plans
// @Produce json
// @Param id path string true "ID of the plan"
// @Success 200 {object} models.Plan
// @Failure 400 {object} map[string]string "error: Invalid plan ID"
// @Failure 404 {object} map[string]string "error: Plan not found"
// @Router /plans/{id} [get]
func GetPlanByID(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}

	var plan models.Plan
	if err := db.DB.First(&plan, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return
	}

	c.JSON(http.StatusOK, plan)
}

// @Summary Update a plan
// @Description Update an existing billing plan
// @Tags plans
// @Accept json
// @Produce json
// @Param id path string true "ID of the plan"
// @Param plan body models.PlanCreate true "Plan information"
// @Security BearerAuth
// @Success 200 {object} models.Plan
// @Failure 400 {object} map[string]string "error: Invalid input"
// @Failure 404 {object} map[string]string "error: Plan not found"
// @Failure 500 {object} map[string]string "error: Error message"
// @Router /plans/{id} [put]
func UpdatePlan(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}

	var plan models.Plan
	if err := db.DB.First(&plan, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return
	}

	var planUpdate models.PlanCreate
	if err := c.ShouldBindJSON(&planUpdate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input: " + err.Error(),
		})
		return
	}

	plan.Name = planUpdate.Name
	plan.Description = planUpdate.Description
	plan.Price = planUpdate.Price
	if planUpdate.Currency != "" {
		plan.Currency = planUpdate.Currency
	}
	if planUpdate.Interval != "" {
		plan.Interval = planUpdate.Interval
	}
	plan.StripePriceId = planUpdate.StripePriceId

	if err := db.DB.Save(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating plan: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, plan)
}
