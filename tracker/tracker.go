// Package tracker implements a pedestrian tracker as a Viam vision service.
// It consumes per-frame detections from a configured detector, maintains a
// stable identity per pedestrian across frames, and serves the confirmed
// track set as detections.
package tracker

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.viam.com/rdk/gostream"
	"go.viam.com/rdk/vision/viscapture"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/vision"
	vis "go.viam.com/rdk/vision"
	"go.viam.com/rdk/vision/classification"
	objdet "go.viam.com/rdk/vision/objectdetection"
	viamutils "go.viam.com/utils"
)

// ModelName is the name of the model
const (
	ModelName                  = "pedestrian-tracker"
	NewPedestrianDetectedLabel = "new-pedestrian-detected"
)

var (
	// Here is where we define your new model's colon-delimited-triplet
	Model                  = resource.NewModel("viam", "vision", ModelName)
	errUnimplemented       = errors.New("unimplemented")
	DefaultMinConfidence   = 0.0
	DefaultMaxFrequency    = 10.0
	DefaultTriggerCoolDown = 5.0
	DefaultScaleTolerance  = 0.25
)

type allObjects struct {
	mutex   sync.RWMutex
	objects []trackedObject
}

type currentDetections struct {
	mutex      sync.RWMutex
	detections []objdet.Detection
}

func init() {
	resource.RegisterService(vision.API, Model, resource.Registration[vision.Service, *Config]{
		Constructor: newTracker,
	})
}

type myTracker struct {
	resource.Named
	logger        logging.Logger
	cancelFunc    context.CancelFunc
	cancelContext context.Context

	triggerCancelFunc context.CancelFunc
	triggerContext    context.Context

	activeBackgroundWorkers sync.WaitGroup
	core                    *pedestrianTracker
	currDetections          currentDetections
	currImg                 atomic.Pointer[image.Image]

	allFreshObjects allObjects

	newInstance atomic.Bool
	coolDown    float64
	properties  vision.Properties

	cam            camera.Camera
	camName        string
	detector       vision.Service
	frequency      float64
	minConfidence  float64
	roi            image.Rectangle
	scaleTable     []float64
	scaleTolerance float64
	timeStats      []time.Duration
}

func newTracker(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (vision.Service, error) {
	t := &myTracker{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		properties: vision.Properties{
			ClassificationSupported: true,
			DetectionSupported:      true,
			ObjectPCDsSupported:     false,
		},
		allFreshObjects: allObjects{
			objects: []trackedObject{},
		},
		currDetections: currentDetections{},
	}

	if err := t.Reconfigure(ctx, deps, conf); err != nil {
		return nil, err
	}

	// Default value for frequency = 10Hz
	if t.frequency == 0 {
		t.frequency = DefaultMaxFrequency
	}

	cancelableCtx, cancel := context.WithCancel(context.Background())
	t.cancelFunc = cancel
	t.cancelContext = cancelableCtx

	stream, err := t.cam.Stream(t.cancelContext, nil)
	if err != nil {
		return nil, err
	}

	t.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		t.run(stream, t.cancelContext)
	}, func() {
		t.cancelFunc()
		stream.Close(t.cancelContext)
		t.activeBackgroundWorkers.Done()
	})

	return t, nil
}

// run is a (cancelable) infinite loop that takes new detections from the
// camera, feeds them through the tracking loop, and publishes the confirmed
// track set. One frame is fully processed before the next is considered.
func (t *myTracker) run(stream gostream.VideoStream, cancelableCtx context.Context) {
	for {
		select {
		case <-cancelableCtx.Done():
			return
		default:
			start := time.Now()
			img, _, err := stream.Next(cancelableCtx)
			if err != nil {
				t.logger.Errorf("can't get image. got err: %s", err)
				continue
			}
			if img == nil {
				t.logger.Errorf("got nil image")
				continue
			}
			detections, err := t.detector.Detections(cancelableCtx, img, nil)
			if err != nil {
				t.logger.Errorf("can't get detections. got err: %s", err)
				continue
			}
			filtered := FilterDetections(detections, t.minConfidence, t.roi, t.scaleTable, t.scaleTolerance)

			newlyConfirmed, err := t.core.ProcessFrame(filtered)
			if err != nil {
				// the frame's detection set was rejected; tracks are untouched
				t.logger.Errorf("dropping frame: %s", err)
				continue
			}
			if len(newlyConfirmed) > 0 {
				// trigger classification and schedule "untrigger"
				t.trigger()

				t.allFreshObjects.mutex.Lock()
				for _, tr := range newlyConfirmed {
					t.allFreshObjects.objects = append(t.allFreshObjects.objects, newTrackedObject(tr))
				}
				t.allFreshObjects.mutex.Unlock()
			}

			confirmed := t.core.confirmedDetections()
			t.currDetections.mutex.Lock()
			t.currDetections.detections = confirmed
			t.currDetections.mutex.Unlock()
			t.currImg.Store(&img)

			took := time.Since(start)
			t.timeStats = append(t.timeStats, took)
			waitFor := time.Duration((1/t.frequency)*float64(time.Second)) - took
			if waitFor > time.Microsecond {
				select {
				case <-cancelableCtx.Done():
					return
				case <-time.After(waitFor):
				}
			}
		}
	}
}

func (t *myTracker) trigger() {
	if t.triggerCancelFunc != nil {
		t.triggerCancelFunc()
	}
	triggerContext, triggerCancelFunc := context.WithCancel(t.cancelContext)
	t.triggerContext = triggerContext
	t.triggerCancelFunc = triggerCancelFunc

	t.newInstance.Store(true)
	t.activeBackgroundWorkers.Add(1)

	viamutils.ManagedGo(
		func() {
			coolDownTimer := time.After(time.Duration(t.coolDown * float64(time.Second)))
			select {
			case <-coolDownTimer:
				t.newInstance.Store(false)
				return
			case <-t.triggerContext.Done():
				return
			}
		},
		func() {
			t.activeBackgroundWorkers.Done()
		})
}

// RegionOfInterest restricts tracking to a sub-rectangle of the frame.
type RegionOfInterest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config contains names for necessary resources (camera and vision service)
// and the tracking constants. Omitted tracking attributes take the defaults
// from DefaultParameters.
type Config struct {
	CameraName      string   `json:"camera_name"`
	DetectorName    string   `json:"detector_name"`
	MaxFrequency    float64  `json:"max_frequency_hz"`
	MinConfidence   *float64 `json:"min_confidence,omitempty"`
	TriggerCoolDown *float64 `json:"trigger_cool_down_s,omitempty"`

	GatingThreshold     *float64          `json:"gating_threshold,omitempty"`
	GatingCost          *float64          `json:"gating_cost,omitempty"`
	CostOfNonAssignment *float64          `json:"cost_of_non_assignment,omitempty"`
	TimeWindowSize      int               `json:"time_window_size,omitempty"`
	ConfidenceThreshold *float64          `json:"confidence_threshold,omitempty"`
	AgeThreshold        int               `json:"age_threshold,omitempty"`
	VisibilityThreshold *float64          `json:"visibility_threshold,omitempty"`
	RegionOfInterest    *RegionOfInterest `json:"region_of_interest,omitempty"`
	ScaleTable          []float64         `json:"scale_table,omitempty"`
	ScaleTolerance      *float64          `json:"scale_tolerance,omitempty"`
}

// parameters merges the config's tracking attributes over the defaults.
func (cfg *Config) parameters() Parameters {
	params := DefaultParameters()
	if cfg.GatingThreshold != nil {
		params.GatingThresh = *cfg.GatingThreshold
	}
	if cfg.GatingCost != nil {
		params.GatingCost = *cfg.GatingCost
	}
	if cfg.CostOfNonAssignment != nil {
		params.CostOfNonAssignment = *cfg.CostOfNonAssignment
	}
	if cfg.TimeWindowSize > 0 {
		params.TimeWindowSize = cfg.TimeWindowSize
	}
	if cfg.ConfidenceThreshold != nil {
		params.ConfidenceThresh = *cfg.ConfidenceThreshold
	}
	if cfg.AgeThreshold > 0 {
		params.AgeThresh = cfg.AgeThreshold
	}
	if cfg.VisibilityThreshold != nil {
		params.VisThresh = *cfg.VisibilityThreshold
	}
	return params
}

// Validate validates the config and returns implicit dependencies,
// this Validate checks if the camera and detector(vision svc) exist for the module's vision model.
func (cfg *Config) Validate(path string) ([]string, error) {
	// this makes them required for the model to successfully build
	if cfg.CameraName == "" {
		return nil, fmt.Errorf(`expected "camera_name" attribute for pedestrian tracker %q`, path)
	}
	if cfg.DetectorName == "" {
		return nil, fmt.Errorf(`expected "detector_name" attribute for pedestrian tracker %q`, path)
	}

	params := cfg.parameters()
	if params.GatingThresh <= 0 || params.GatingThresh > 1 {
		return nil, errors.New("gating_threshold must be in (0, 1]")
	}
	if params.GatingCost <= 0 {
		return nil, errors.New("gating_cost must be a positive number")
	}
	if params.CostOfNonAssignment <= 0 {
		return nil, errors.New("cost_of_non_assignment must be a positive number")
	}
	// gating relies on the gate sitting above the price of leaving a pair
	// unassigned
	if params.CostOfNonAssignment >= 1+params.GatingCost {
		return nil, errors.New("cost_of_non_assignment must be less than 1 + gating_cost")
	}
	if params.VisThresh < 0 || params.VisThresh > 1 {
		return nil, errors.New("visibility_threshold must be between 0.0 and 1.0")
	}
	if cfg.TimeWindowSize < 0 {
		return nil, errors.New("attribute time_window_size cannot be less than 0")
	}
	if cfg.AgeThreshold < 0 {
		return nil, errors.New("attribute age_threshold cannot be less than 0")
	}
	if cfg.ScaleTolerance != nil && *cfg.ScaleTolerance <= 0 {
		return nil, errors.New("scale_tolerance must be a positive fraction")
	}
	if len(cfg.ScaleTable) > 0 && cfg.RegionOfInterest == nil {
		return nil, errors.New("scale_table requires region_of_interest to be set")
	}
	for _, h := range cfg.ScaleTable {
		if h <= 0 {
			return nil, errors.New("scale_table entries must be positive heights")
		}
	}
	if roi := cfg.RegionOfInterest; roi != nil {
		if roi.Width <= 0 || roi.Height <= 0 {
			return nil, errors.New("region_of_interest must have positive width and height")
		}
	}

	// Return the resource names so that newTracker can access them as dependencies.
	return []string{cfg.CameraName, cfg.DetectorName}, nil
}

// Reconfigure reconfigures with new settings. The track set starts over:
// identities do not survive a parameter change.
func (t *myTracker) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	var timeList []time.Duration
	t.cam = nil
	t.detector = nil
	t.timeStats = timeList

	trackerConfig, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return errors.Errorf("Could not assert proper config for %s", ModelName)
	}

	if trackerConfig.MaxFrequency < 0 {
		// if 0, will be set to default later
		return errors.New("frequency(Hz) must be a positive number")
	}
	t.frequency = trackerConfig.MaxFrequency

	//config trigger cool down
	if trackerConfig.TriggerCoolDown != nil {
		if *trackerConfig.TriggerCoolDown < 0 {
			return errors.New("trigger_cool_down_s is a duration given in seconds and should be above 0.")
		}
		t.coolDown = *trackerConfig.TriggerCoolDown
	} else {
		t.coolDown = DefaultTriggerCoolDown
	}

	//config min confidence
	if trackerConfig.MinConfidence != nil {
		t.minConfidence = *trackerConfig.MinConfidence
	} else {
		t.minConfidence = DefaultMinConfidence
	}
	if t.minConfidence < 0 {
		return errors.New("minimum thresholding confidence cannot be negative")
	}

	t.roi = image.Rectangle{}
	if roi := trackerConfig.RegionOfInterest; roi != nil {
		t.roi = image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height)
	}
	t.scaleTable = trackerConfig.ScaleTable
	if trackerConfig.ScaleTolerance != nil {
		t.scaleTolerance = *trackerConfig.ScaleTolerance
	} else {
		t.scaleTolerance = DefaultScaleTolerance
	}

	t.core = newPedestrianTracker(trackerConfig.parameters())

	t.camName = trackerConfig.CameraName
	t.cam, err = camera.FromDependencies(deps, trackerConfig.CameraName)
	if err != nil {
		return errors.Wrapf(err, "unable to get camera %v for pedestrian tracker", trackerConfig.CameraName)
	}
	t.detector, err = vision.FromDependencies(deps, trackerConfig.DetectorName)
	if err != nil {
		return errors.Wrapf(err, "unable to get detector %v for pedestrian tracker", trackerConfig.DetectorName)
	}
	return nil
}

func (t *myTracker) DetectionsFromCamera(
	ctx context.Context,
	cameraName string,
	extra map[string]interface{},
) ([]objdet.Detection, error) {
	if cameraName != t.camName {
		return nil, errors.Errorf("Camera name given to method, %v is not the same as configured camera %v", cameraName, t.camName)
	}
	select {
	case <-t.cancelContext.Done():
		return nil, t.cancelContext.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		t.currDetections.mutex.RLock()
		dets := t.currDetections.detections
		t.currDetections.mutex.RUnlock()
		return dets, nil
	}
}

func (t *myTracker) Detections(ctx context.Context, img image.Image, extra map[string]interface{}) ([]objdet.Detection, error) {
	select {
	case <-t.cancelContext.Done():
		return nil, t.cancelContext.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		t.currDetections.mutex.RLock()
		dets := t.currDetections.detections
		t.currDetections.mutex.RUnlock()
		return dets, nil
	}
}

func (t *myTracker) ClassificationsFromCamera(
	ctx context.Context,
	cameraName string,
	n int,
	extra map[string]interface{},
) (classification.Classifications, error) {
	if cameraName != t.camName {
		return nil, errors.Errorf("Camera name given to method, %v is not the same as configured camera %v", cameraName, t.camName)
	}
	if newInstance := t.newInstance.Load(); newInstance {
		return []classification.Classification{classification.NewClassification(1, NewPedestrianDetectedLabel)}, nil
	} else {
		return []classification.Classification{}, nil
	}
}

func (t *myTracker) Classifications(ctx context.Context, img image.Image,
	n int, extra map[string]interface{},
) (classification.Classifications, error) {
	if newInstance := t.newInstance.Load(); newInstance {
		return []classification.Classification{classification.NewClassification(1, NewPedestrianDetectedLabel)}, nil
	} else {
		return []classification.Classification{}, nil
	}
}

func (t *myTracker) GetProperties(ctx context.Context, extra map[string]interface{}) (*vision.Properties, error) {
	return &t.properties, nil
}

func (t *myTracker) GetObjectPointClouds(
	ctx context.Context,
	cameraName string,
	extra map[string]interface{},
) ([]*vis.Object, error) {
	return nil, errUnimplemented
}

func (t *myTracker) CaptureAllFromCamera(
	ctx context.Context,
	cameraName string,
	opt viscapture.CaptureOptions,
	extra map[string]interface{},
) (viscapture.VisCapture, error) {
	var detections []objdet.Detection
	var classifications []classification.Classification
	var img image.Image
	select {
	case <-t.cancelContext.Done():
		return viscapture.VisCapture{}, t.cancelContext.Err()
	case <-ctx.Done():
		return viscapture.VisCapture{}, ctx.Err()
	default:
		if opt.ReturnImage {
			if cameraName != t.camName {
				return viscapture.VisCapture{}, errors.Errorf("Camera name given to method, %v is not the same as configured camera %v", cameraName, t.camName)
			}
			img = *t.currImg.Load()
		}
		if opt.ReturnDetections {
			t.currDetections.mutex.RLock()
			detections = t.currDetections.detections
			t.currDetections.mutex.RUnlock()
		}
		if opt.ReturnClassifications {
			if newInstance := t.newInstance.Load(); newInstance {
				classifications = []classification.Classification{classification.NewClassification(1, NewPedestrianDetectedLabel)}
			} else {
				classifications = []classification.Classification{}
			}
		}
	}
	return viscapture.VisCapture{Image: img, Detections: detections, Classifications: classifications}, nil
}

func (t *myTracker) Close(ctx context.Context) error {
	t.cancelFunc()
	t.activeBackgroundWorkers.Wait()
	return nil
}

// trackedObject is the log entry recorded when a track becomes confirmed.
type trackedObject struct {
	Label string
	Id    int64
	Time  string
}

func newTrackedObject(tr *track) trackedObject {
	return trackedObject{
		Label: trackLabel(tr.id),
		Id:    tr.id,
		Time:  time.Now().Format("20060102_150405"),
	}
}

type benchmark struct {
	Slowest      float64
	Fastest      float64
	Average      float64
	NumberOfRuns int
}

// DoCommand will return the slowest, fastest, and average time of the tracking module
func (t *myTracker) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	// average, fastest, and slowest time (and n)
	out := make(map[string]interface{})
	if cmd["benchmark"] != nil {
		tmin, tmax := 10*time.Second, 10*time.Nanosecond
		n := int64(len(t.timeStats))
		var sum time.Duration
		for _, tt := range t.timeStats {
			if tt < tmin {
				tmin = tt
			}
			if tt > tmax {
				tmax = tt
			}
			sum += tt
		}
		mean := time.Duration(int64(sum) / n)
		out["benchmark"] = benchmark{
			Slowest:      float64(tmax),
			Fastest:      float64(tmin),
			Average:      float64(mean),
			NumberOfRuns: int(n),
		}
	}
	if cmd["logs"] != nil {
		t.allFreshObjects.mutex.RLock()
		out["logs"] = t.allFreshObjects.objects
		t.allFreshObjects.mutex.RUnlock()
	}
	return out, nil
}
