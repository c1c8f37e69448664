package livehttp

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"trendpilot/internal/agent"
	"trendpilot/internal/analysis/chart"
	"trendpilot/internal/decision"
	"trendpilot/internal/logger"
	"trendpilot/internal/store"

	"github.com/gin-gonic/gin"
)

// Source 是 HTTP 面板读取的会话状态。
type Source interface {
	Symbol() string
	Timeframe() string
	TestMode() bool
	History() *decision.History
	Candles() *store.CandleCache
	LastCycle() (agent.CycleResult, bool)
}

// Router 暴露实盘会话的只读接口。
type Router struct {
	Source   Source
	Logs     store.AuditReader
	logPaths map[string]string
	logNames []string
}

// NewRouter 构造 live HTTP router。
func NewRouter(src Source, logs store.AuditReader, logPaths map[string]string) *Router {
	names := make([]string, 0, len(logPaths))
	for name, path := range logPaths {
		if strings.TrimSpace(path) == "" || strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &Router{Source: src, Logs: logs, logPaths: logPaths, logNames: names}
}

// Register 将 /api/live 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/signals", r.handleSignals)
	group.GET("/cycle", r.handleCycle)
	group.GET("/logs", r.handleAuditLogs)
	group.GET("/logfile", r.handleLogFile)
	group.GET("/chart", r.handleChart)
}

func (r *Router) handleSignals(c *gin.Context) {
	h := r.Source.History()
	items := h.Snapshot()
	limit := parseLimit(c, len(items), h.Cap())
	if limit < len(items) {
		items = items[len(items)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    r.Source.Symbol(),
		"timeframe": r.Source.Timeframe(),
		"test_mode": r.Source.TestMode(),
		"signals":   items,
		"count":     len(items),
	})
}

func (r *Router) handleCycle(c *gin.Context) {
	res, ok := r.Source.LastCycle()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未完成任何周期"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleAuditLogs(c *gin.Context) {
	if r.Logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "审计日志未启用"})
		return
	}
	limit := parseLimit(c, 100, 500)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	logs, err := r.Logs.Recent(ctx, limit)
	if err != nil {
		logger.Errorf("[api] audit logs failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (r *Router) handleLogFile(c *gin.Context) {
	if len(r.logNames) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置日志文件"})
		return
	}
	name := strings.TrimSpace(c.DefaultQuery("name", r.logNames[0]))
	path := strings.TrimSpace(r.logPaths[name])
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown log name", "available": r.logNames})
		return
	}
	limit := parseLimit(c, 200, 5000)
	lines, err := readLastLines(path, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "name": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      name,
		"lines":     lines,
		"available": r.logNames,
	})
}

func (r *Router) handleChart(c *gin.Context) {
	candles := r.Source.Candles().Recent(parseLimit(c, 0, 1500))
	in := chart.Input{
		Symbol:    r.Source.Symbol(),
		Timeframe: r.Source.Timeframe(),
		Candles:   candles,
	}
	if last, ok := r.Source.History().Last(); ok {
		in.Last = &last
	}
	html, err := chart.Render(in)
	if err != nil {
		if errors.Is(err, chart.ErrNoCandles) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "暂无 K 线数据"})
			return
		}
		logger.Errorf("[api] chart render failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// parseLimit 读取 ?limit=，非法或缺省时取 def，超过 max 时截断。
func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil || limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}

const maxLogLineSize = 4 * 1024 * 1024 // 4MB per line for payload-heavy logs

func readLastLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLogLineSize)
	lines := make([]string, 0, limit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
