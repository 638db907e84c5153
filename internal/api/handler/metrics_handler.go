package handler

import (
	"Tracklight/internal/api/dto"
	"Tracklight/internal/api/middleware"
	"Tracklight/internal/pkg/response"
	"Tracklight/internal/pkg/util"
	"Tracklight/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type MetricsHandler struct {
	refreshSvc   service.RefreshService
	analyticsSvc service.AnalyticsService
}

func NewMetricsHandler(refreshSvc service.RefreshService, analyticsSvc service.AnalyticsService) *MetricsHandler {
	return &MetricsHandler{
		refreshSvc:   refreshSvc,
		analyticsSvc: analyticsSvc,
	}
}

// RefreshEntity 手动刷新单个实体，管理员不受冷却限制
func (h *MetricsHandler) RefreshEntity(c *gin.Context) {
	tenantID := c.GetUint64(middleware.CtxTenantID)
	entityID, err := strconv.ParseUint(c.Param("entity_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	var query dto.AnalyticsQueryDTO
	if err = c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&query); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.refreshSvc.RefreshEntity(c.Request.Context(), tenantID, entityID, c.GetBool(middleware.CtxPrivileged), query.Period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetAnalytics 获取实体当前指标、环比变化与每日序列
func (h *MetricsHandler) GetAnalytics(c *gin.Context) {
	tenantID := c.GetUint64(middleware.CtxTenantID)
	entityID, err := strconv.ParseUint(c.Param("entity_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	var query dto.AnalyticsQueryDTO
	if err = c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&query); err != nil {
		response.Error(c, err)
		return
	}

	analytics, err := h.analyticsSvc.GetEntityAnalytics(c.Request.Context(), tenantID, entityID, query.Period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, analytics)
}

func (h *MetricsHandler) ListSnapshots(c *gin.Context) {
	tenantID := c.GetUint64(middleware.CtxTenantID)
	entityID, err := strconv.ParseUint(c.Param("entity_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	var query dto.SnapshotQueryDTO
	if err = c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&query); err != nil {
		response.Error(c, err)
		return
	}

	snapshots, err := h.analyticsSvc.ListSnapshots(c.Request.Context(), tenantID, entityID, &query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snapshots)
}

// RefreshCampaign 批量刷新活动下的全部实体
func (h *MetricsHandler) RefreshCampaign(c *gin.Context) {
	tenantID := c.GetUint64(middleware.CtxTenantID)
	campaignID, err := strconv.ParseUint(c.Param("campaign_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	summary, err := h.refreshSvc.RefreshCampaign(c.Request.Context(), tenantID, campaignID, c.GetBool(middleware.CtxPrivileged))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}
