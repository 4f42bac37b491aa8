package router

import (
	"context"
	"errors"

	"resumease-go/internal/analyzer"
	"resumease-go/internal/api/handler"
	"resumease-go/internal/config"
	"resumease-go/internal/parser"
	"resumease-go/internal/processor"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.ServerConfig, resumeHandler *handler.ResumeHandler, atsHandler *handler.ATSHandler) {
	api := h.Group("/api/v1")

	// 配置了server.api_key时启用Bearer鉴权
	if cfg != nil && cfg.APIKey != "" {
		apiKey := cfg.APIKey
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
		))
	}

	api.POST("/resume/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		result, err := resumeHandler.HandleResumeUpload(c, file, fileHeader.Filename)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, result)
	})

	api.POST("/ats/score", func(c context.Context, ctx *app.RequestContext) {
		var req handler.ScoreRequest
		if err := ctx.BindAndValidate(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		resp, err := atsHandler.HandleScore(c, &req)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/jobs", func(c context.Context, ctx *app.RequestContext) {
		var req handler.CreateJobRequest
		if err := ctx.BindAndValidate(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		resp, err := atsHandler.HandleCreateJob(c, &req)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/ats/score/:score_id", func(c context.Context, ctx *app.RequestContext) {
		score, err := atsHandler.HandleGetScore(c, ctx.Param("score_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		if score == nil {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": "评分不存在"})
			return
		}
		ctx.JSON(consts.StatusOK, score)
	})

	api.GET("/ats/history/:resume_id", func(c context.Context, ctx *app.RequestContext) {
		scores, err := atsHandler.HandleScoreHistory(c, ctx.Param("resume_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"scores": scores})
	})

	api.POST("/analysis/github", func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Username string `json:"username"`
		}
		if err := ctx.BindAndValidate(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		resp, err := atsHandler.HandleGithubAnalysis(c, req.Username)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/analysis/github/:username", func(c context.Context, ctx *app.RequestContext) {
		resp, err := atsHandler.HandleGithubAnalysis(c, ctx.Param("username"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/analysis/links/:resume_id", func(c context.Context, ctx *app.RequestContext) {
		result, err := atsHandler.HandleLinkAnalysis(c, ctx.Param("resume_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, result)
	})

	// 健康检查不走鉴权
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}

// statusForError 业务错误到HTTP状态码的映射
func statusForError(err error) int {
	switch {
	case errors.Is(err, handler.ErrMissingResumeID),
		errors.Is(err, handler.ErrMissingJobID),
		errors.Is(err, handler.ErrMissingUsername),
		errors.Is(err, handler.ErrMissingJobTitle),
		errors.Is(err, handler.ErrMissingJobDescText),
		errors.Is(err, parser.ErrUnsupportedFormat),
		errors.Is(err, parser.ErrDocumentCorrupt),
		errors.Is(err, parser.ErrNoExtractableText):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrResumeNotFound),
		errors.Is(err, processor.ErrJobNotFound),
		errors.Is(err, analyzer.ErrProfileNotFound):
		return consts.StatusNotFound
	default:
		return consts.StatusInternalServerError
	}
}
