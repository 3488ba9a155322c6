package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"finledger/internal/config"
	"finledger/internal/database"
	"finledger/internal/handlers"
	"finledger/internal/logger"
	"finledger/internal/middleware"
	"finledger/internal/services"
	"finledger/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom validators with Gin's binding engine
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	accountService := services.NewAccountService(db)
	categoryService := services.NewCategoryService(db)
	tagService := services.NewTagService(db)
	ledgerService := services.NewLedgerService(db)
	searchService := services.NewSearchService(db)
	budgetService := services.NewBudgetService(db, categoryService)
	goalService := services.NewGoalService(db)
	recurringService := services.NewRecurringService(db, ledgerService)
	analyticsService := services.NewAnalyticsService(db)
	exportService := services.NewExportService(db, ledgerService, categoryService, tagService)

	// Linked goals track recorded account activity through ledger commits
	ledgerService.Subscribe(goalService.RefreshForAccounts)

	// Initialize handlers
	currency := appConfig.DefaultCurrency
	accountHandler := handlers.NewAccountHandler(accountService, ledgerService, currency)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	tagHandler := handlers.NewTagHandler(tagService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService, searchService, accountService, currency)
	budgetHandler := handlers.NewBudgetHandler(budgetService, currency)
	goalHandler := handlers.NewGoalHandler(goalService, currency)
	recurringHandler := handlers.NewRecurringHandler(recurringService, accountService, currency)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	exportHandler := handlers.NewExportHandler(exportService, currency)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Account routes
	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)
	accounts.POST("/:id/adjust-balance", accountHandler.AdjustBalance)

	// Category routes
	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	// Tag routes
	tags := v1.Group("/tags")
	tags.POST("", tagHandler.CreateTag)
	tags.GET("", tagHandler.GetTags)
	tags.PUT("/:id", tagHandler.UpdateTag)
	tags.DELETE("/:id", tagHandler.DeleteTag)

	// Transaction routes
	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/search", transactionHandler.SearchTransactions)
	transactions.GET("/export", exportHandler.ExportTransactions)
	transactions.POST("/import", exportHandler.ImportTransactions)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.POST("/:id/realize", transactionHandler.RealizeTransaction)

	// Budget routes
	budgets := v1.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/progress", budgetHandler.GetBudgetProgress)

	// Savings goal routes
	goals := v1.Group("/goals")
	goals.POST("", goalHandler.CreateGoal)
	goals.GET("", goalHandler.GetGoals)
	goals.GET("/:id", goalHandler.GetGoal)
	goals.PUT("/:id", goalHandler.UpdateGoal)
	goals.DELETE("/:id", goalHandler.DeleteGoal)
	goals.POST("/:id/contribute", goalHandler.Contribute)

	// Recurring transaction routes
	recurring := v1.Group("/recurring-transactions")
	recurring.POST("", recurringHandler.CreateRecurring)
	recurring.GET("", recurringHandler.GetRecurring)
	recurring.POST("/process-all", recurringHandler.ProcessAll)
	recurring.GET("/:id", recurringHandler.GetRecurringByID)
	recurring.PUT("/:id", recurringHandler.UpdateRecurring)
	recurring.DELETE("/:id", recurringHandler.DeleteRecurring)
	recurring.PATCH("/:id/active", recurringHandler.SetActive)
	recurring.POST("/:id/process", recurringHandler.Process)
	recurring.GET("/:id/preview", recurringHandler.Preview)

	// Analytics routes
	analytics := v1.Group("/analytics")
	analytics.GET("/dashboard", analyticsHandler.GetDashboard)
	analytics.GET("/trends", analyticsHandler.GetTrends)
	analytics.GET("/forecast", analyticsHandler.GetForecast)
	analytics.GET("/monthly-comparison", analyticsHandler.GetMonthlyComparison)
	analytics.GET("/top-expenses", analyticsHandler.GetTopExpenses)
	analytics.GET("/expense-heatmap", analyticsHandler.GetHeatmap)

	log.Infof("Starting finledger server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
