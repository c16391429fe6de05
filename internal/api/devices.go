package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/gateway"
	"github.com/digihome/digihome-core/internal/provisioning"
)

// ConfigKeyOvercurrentThreshold is the only device setting clients may change.
const ConfigKeyOvercurrentThreshold = "overcurrentThreshold"

type claimRequest struct {
	DeviceID string `json:"deviceId"`
}

type stateRequest struct {
	Active *bool `json:"active"`
}

type configRequest struct {
	ConfigKey string   `json:"configKey"`
	Value     *float64 `json:"value"`
}

// handleClaimStatus reports whether an announced device is ready to claim.
func (s *Server) handleClaimStatus(w http.ResponseWriter, _ *http.Request) {
	if s.claimer == nil {
		writeUnavailable(w, "provisioning is not available")
		return
	}
	id, ok := s.claimer.Status()
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true, "deviceId": id})
}

// handleClaimDevice binds a confirmed device to the calling account.
func (s *Server) handleClaimDevice(w http.ResponseWriter, r *http.Request) {
	if s.claimer == nil {
		writeUnavailable(w, "provisioning is not available")
		return
	}
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := s.claimer.Claim(r.Context(), accountIDFromContext(r.Context()), req.DeviceID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, d)
	case errors.Is(err, device.ErrInvalidID):
		writeValidationError(w, "invalid device id")
	case errors.Is(err, provisioning.ErrAlreadyRegistered):
		writeBadRequest(w, "device is already registered")
	case errors.Is(err, provisioning.ErrNotConfirmed):
		writeNotFound(w, "device has not confirmed provisioning")
	default:
		s.logger.Error("claim failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to claim device")
	}
}

// ownedDevice loads the {id} device for the caller, writing 404 when the
// device is missing or belongs to someone else.
func (s *Server) ownedDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id := chi.URLParam(r, "id")
	d, err := s.devices.GetOwned(r.Context(), accountIDFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		s.logger.Error("loading device", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device")
		return nil, false
	}
	return d, true
}

// sendCommand publishes cmd, logging rather than failing the request when
// the transport is down.
func (s *Server) sendCommand(deviceID string, cmd gateway.Command) bool {
	if s.commands == nil {
		return false
	}
	if err := s.commands.SendCommand(deviceID, cmd); err != nil {
		s.logger.Warn("command not published", "device_id", deviceID, "action", cmd.Action, "error", err)
		return false
	}
	return true
}

// handleSetDeviceState switches a device on or off.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeValidationError(w, "active is required")
		return
	}
	d, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}

	if d.Active != *req.Active {
		if err := s.devices.SetActive(r.Context(), d.ID, *req.Active); err != nil {
			s.logger.Error("updating device state", "device_id", d.ID, "error", err)
			writeInternalError(w, "failed to update device")
			return
		}
		d.Active = *req.Active
		s.sendCommand(d.ID, gateway.SetStatus(d.Active))
	}
	writeJSON(w, http.StatusOK, d)
}

// handleSetDeviceConfig updates a device setting and pushes it to the plug.
func (s *Server) handleSetDeviceConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConfigKey != ConfigKeyOvercurrentThreshold {
		writeValidationError(w, "unsupported configKey: "+req.ConfigKey)
		return
	}
	if req.Value == nil || device.ValidateThreshold(*req.Value) != nil {
		writeValidationError(w, "value must be a positive number")
		return
	}
	d, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}

	if err := s.devices.SetOvercurrentThreshold(r.Context(), d.ID, *req.Value); err != nil {
		s.logger.Error("updating device config", "device_id", d.ID, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}
	d.Config.OvercurrentThreshold = *req.Value
	s.sendCommand(d.ID, gateway.SetConfig(req.ConfigKey, *req.Value))
	writeJSON(w, http.StatusOK, d)
}

// handleEnterProvisioning tells the plug to reopen its setup portal.
func (s *Server) handleEnterProvisioning(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}
	if !s.sendCommand(d.ID, gateway.EnterProvisioning()) {
		writeUnavailable(w, "device command could not be sent")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"deviceId": d.ID, "action": gateway.ActionEnterProvisioning})
}

// handleDeleteDevice factory-resets the plug and removes it.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDevice(w, r)
	if !ok {
		return
	}
	s.sendCommand(d.ID, gateway.FactoryReset())

	if err := s.devices.Delete(r.Context(), d.ID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("deleting device", "device_id", d.ID, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
