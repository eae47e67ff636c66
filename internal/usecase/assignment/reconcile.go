package assignment

import (
	"context"
	"fmt"

	domainDevice "farm-iot-provisioning/internal/domain/device"
	domainRequest "farm-iot-provisioning/internal/domain/request"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	appErrors "farm-iot-provisioning/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssueKind names a cross-reference divergence between devices, requests and
// the user-device index.
type IssueKind string

const (
	IssueRequestMissing  IssueKind = "request_missing"  // device points at a request that does not exist
	IssueRequestMismatch IssueKind = "request_mismatch" // request does not point back at the device or its owner
	IssueDeviceMissing   IssueKind = "device_missing"   // assigned request names a device that does not exist
	IssueDeviceNotOwned  IssueKind = "device_not_owned" // assigned request names an unowned device
	IssueLinkMissing     IssueKind = "link_missing"     // owner's index lacks the device
	IssueLinkStale       IssueKind = "link_stale"       // index entry for a device the user does not own
)

type Issue struct {
	Kind      IssueKind  `json:"kind"`
	DeviceID  string     `json:"device_id"`
	RequestID *uuid.UUID `json:"request_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Detail    string     `json:"detail"`
}

type Report struct {
	DevicesChecked  int      `json:"devices_checked"`
	RequestsChecked int      `json:"requests_checked"`
	LinksChecked    int      `json:"links_checked"`
	Issues          []*Issue `json:"issues"`
}

// Consistent reports whether no divergence was found.
func (r *Report) Consistent() bool {
	return len(r.Issues) == 0
}

// reconcilePageSize bounds each request page read during a scan.
const reconcilePageSize = 200

// Reconciler scans committed assignments and reports records whose
// cross-references disagree.
type Reconciler struct {
	requestRepo domainRequest.Repository
	deviceRepo  domainDevice.Repository
}

func NewReconciler(requestRepo domainRequest.Repository, deviceRepo domainDevice.Repository) *Reconciler {
	return &Reconciler{requestRepo: requestRepo, deviceRepo: deviceRepo}
}

// Run is the operator entry point of Check.
func (rc *Reconciler) Run(ctx context.Context, actor domainUser.Actor) (*Report, error) {
	if !actor.IsOperator() {
		return nil, appErrors.Unauthorized("Only operators can run reconciliation")
	}
	return rc.Check(ctx)
}

// Check reads every owned device, assigned request and index entry and
// returns the divergences between them. It never writes.
func (rc *Reconciler) Check(ctx context.Context) (*Report, error) {
	devices, err := rc.deviceRepo.List(ctx, &domainDevice.Filter{OwnedOnly: true})
	if err != nil {
		return nil, appErrors.Persistence("Failed to list devices", err)
	}
	requests, err := rc.assignedRequests(ctx)
	if err != nil {
		return nil, err
	}
	links, err := rc.deviceRepo.ListLinks(ctx, nil)
	if err != nil {
		return nil, appErrors.Persistence("Failed to list device links", err)
	}

	report := &Report{
		DevicesChecked:  len(devices),
		RequestsChecked: len(requests),
		LinksChecked:    len(links),
		Issues:          []*Issue{},
	}

	devicesByID := make(map[string]*domainDevice.Device, len(devices))
	for _, d := range devices {
		devicesByID[d.ID] = d
	}
	requestsByID := make(map[uuid.UUID]*domainRequest.DeviceRequest, len(requests))
	for _, r := range requests {
		requestsByID[r.ID] = r
	}
	linked := make(map[string]bool, len(links))
	for _, l := range links {
		linked[linkKey(l.UserID, l.DeviceID)] = true
	}

	for _, d := range devices {
		owner := *d.OwnerUserID
		if !linked[linkKey(owner, d.ID)] {
			report.add(&Issue{Kind: IssueLinkMissing, DeviceID: d.ID, UserID: &owner, Detail: "owner's device index does not contain the device"})
		}

		if d.RequestID == nil {
			report.add(&Issue{Kind: IssueRequestMissing, DeviceID: d.ID, UserID: &owner, Detail: "owned device has no request"})
			continue
		}
		r, ok := requestsByID[*d.RequestID]
		if !ok {
			r, err = rc.requestRepo.GetByID(ctx, *d.RequestID)
			if err != nil {
				report.add(&Issue{Kind: IssueRequestMissing, DeviceID: d.ID, RequestID: d.RequestID, UserID: &owner, Detail: "request not found or not assigned"})
				continue
			}
		}
		switch {
		case !r.Status.RequiresAssignedDevice():
			report.add(&Issue{Kind: IssueRequestMismatch, DeviceID: d.ID, RequestID: &r.ID, UserID: &owner,
				Detail: fmt.Sprintf("request is %s", r.Status)})
		case *r.AssignedDeviceID != d.ID:
			report.add(&Issue{Kind: IssueRequestMismatch, DeviceID: d.ID, RequestID: &r.ID, UserID: &owner,
				Detail: fmt.Sprintf("request is assigned device %s", *r.AssignedDeviceID)})
		case r.OwnerUserID != owner:
			report.add(&Issue{Kind: IssueRequestMismatch, DeviceID: d.ID, RequestID: &r.ID, UserID: &owner,
				Detail: fmt.Sprintf("request belongs to %s", r.OwnerUserID)})
		}
	}

	for _, r := range requests {
		// A request whose device moved on to a later request is history and
		// only needs its device to still exist.
		deviceID := *r.AssignedDeviceID
		if _, ok := devicesByID[deviceID]; !ok {
			kind, detail := IssueDeviceMissing, "assigned device does not exist"
			if _, err := rc.deviceRepo.GetByID(ctx, deviceID); err == nil {
				kind, detail = IssueDeviceNotOwned, "assigned device has no owner"
			}
			requestID := r.ID
			report.add(&Issue{Kind: kind, DeviceID: deviceID, RequestID: &requestID, UserID: &r.OwnerUserID, Detail: detail})
		}
	}

	for _, l := range links {
		d, ok := devicesByID[l.DeviceID]
		if ok && d.IsOwnedBy(l.UserID) {
			continue
		}
		userID := l.UserID
		report.add(&Issue{Kind: IssueLinkStale, DeviceID: l.DeviceID, UserID: &userID, Detail: "user does not own the indexed device"})
	}

	if report.Consistent() {
		logger.Info("Reconciliation found no divergence",
			zap.Int("devices", report.DevicesChecked),
			zap.Int("requests", report.RequestsChecked),
			zap.Int("links", report.LinksChecked),
			logger.Event("reconciliation_completed"),
		)
	} else {
		logger.Warn("Reconciliation found divergent records",
			zap.Int("issues", len(report.Issues)),
			logger.Event("reconciliation_completed"),
		)
	}
	return report, nil
}

func (rc *Reconciler) assignedRequests(ctx context.Context) ([]*domainRequest.DeviceRequest, error) {
	filter := &domainRequest.Filter{
		Statuses: []domainRequest.Status{domainRequest.StatusDeviceAssigned, domainRequest.StatusCompleted},
		PageSize: reconcilePageSize,
	}

	var all []*domainRequest.DeviceRequest
	for page := 1; ; page++ {
		filter.Page = page
		requests, total, err := rc.requestRepo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Persistence("Failed to list assigned requests", err)
		}
		all = append(all, requests...)
		if len(requests) == 0 || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func (r *Report) add(issue *Issue) {
	r.Issues = append(r.Issues, issue)
	logger.Warn("Assignment divergence detected",
		zap.String("kind", string(issue.Kind)),
		zap.String("device_id", issue.DeviceID),
		zap.String("detail", issue.Detail),
		logger.Event("reconciliation_issue"),
	)
}

func linkKey(userID uuid.UUID, deviceID string) string {
	return userID.String() + "/" + deviceID
}
