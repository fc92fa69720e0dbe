package commandserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/resonantfield/tapedeck/internal/project"
)

func parseTrackID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func (s *Server) handleTransportState(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"state":    s.engine.Transport.State().String(),
		"position": s.engine.Transport.Position(),
		"seconds":  s.engine.Transport.PositionSeconds(),
	})
}

func (s *Server) handlePlay(c echo.Context) error {
	if err := s.engine.Transport.Play(); err != nil {
		return statusError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handlePause(c echo.Context) error {
	if err := s.engine.Transport.Pause(); err != nil {
		return statusError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleStop(c echo.Context) error {
	if err := s.engine.Transport.Stop(); err != nil {
		return statusError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleRecord(c echo.Context) error {
	if err := s.engine.Transport.StartRecording(); err != nil {
		return statusError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSeek(c echo.Context) error {
	var body struct {
		Frame int64 `json:"frame"`
	}
	if err := c.Bind(&body); err != nil {
		return statusError(c, err)
	}
	s.engine.Transport.Seek(body.Frame)
	return c.NoContent(http.StatusAccepted)
}

// submitted commands apply asynchronously on the audio thread's next
// block, so handlers return 202 Accepted rather than the post-apply state.

func (s *Server) handleCreateTrack(c echo.Context) error {
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.Bind(&body); err != nil {
		return statusError(c, err)
	}
	s.engine.Commands.Submit(&project.CreateTrack{Name: body.Name, Color: body.Color})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleDeleteTrack(c echo.Context) error {
	id, err := parseTrackID(c)
	if err != nil {
		return statusError(c, err)
	}
	s.engine.Commands.Submit(&project.DeleteTrack{TrackID: id})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSetGain(c echo.Context) error {
	id, err := parseTrackID(c)
	if err != nil {
		return statusError(c, err)
	}
	var body struct {
		Gain float64 `json:"gain"`
	}
	if err := c.Bind(&body); err != nil {
		return statusError(c, err)
	}
	s.engine.Commands.Submit(&project.SetTrackGain{TrackID: id, Gain: body.Gain})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSetPan(c echo.Context) error {
	id, err := parseTrackID(c)
	if err != nil {
		return statusError(c, err)
	}
	var body struct {
		Pan float64 `json:"pan"`
	}
	if err := c.Bind(&body); err != nil {
		return statusError(c, err)
	}
	s.engine.Commands.Submit(&project.SetTrackPan{TrackID: id, Pan: body.Pan})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleToggleMute(c echo.Context) error {
	id, err := parseTrackID(c)
	if err != nil {
		return statusError(c, err)
	}
	s.engine.Commands.Submit(&project.ToggleMute{TrackID: id})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleToggleSolo(c echo.Context) error {
	id, err := parseTrackID(c)
	if err != nil {
		return statusError(c, err)
	}
	s.engine.Commands.Submit(&project.ToggleSolo{TrackID: id})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleTrackMeter(c echo.Context) error {
	id, err := parseTrackID(c)
	if err != nil {
		return statusError(c, err)
	}
	meter, ok := s.engine.Meters.Track(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no meter for track")
	}
	return c.JSON(http.StatusOK, meter)
}

func (s *Server) handleMasterMeter(c echo.Context) error {
	meter, ok := s.engine.Meters.Master()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no master meter published yet")
	}
	return c.JSON(http.StatusOK, meter)
}

func (s *Server) handleRecorderArm(c echo.Context) error {
	var body struct {
		TrackID uint64 `json:"track_id"`
	}
	if err := c.Bind(&body); err != nil {
		return statusError(c, err)
	}
	if err := s.recorder.Arm(body.TrackID); err != nil {
		return statusError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleRecorderFinish(c echo.Context) error {
	if err := s.recorder.Finish(c.Request().Context()); err != nil {
		return statusError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleRecentProjects(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store not configured")
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.store.RecentProjects(limit)
	if err != nil {
		return statusError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleRecordingSessions(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store not configured")
	}
	projectID, err := strconv.ParseUint(c.QueryParam("project_id"), 10, 64)
	if err != nil {
		return statusError(c, err)
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	sessions, err := s.store.RecordingSessions(uint(projectID), limit)
	if err != nil {
		return statusError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}
