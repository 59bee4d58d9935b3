package rf2

// Header precedes every record.
type Header struct {
	VersionUpdateBegin uint32
	VersionUpdateEnd   uint32
}

type Vec3 struct {
	X, Y, Z float64
}

// Vehicle control values.
const (
	ControlNobody      int8 = -1
	ControlLocalPlayer int8 = 0
	ControlLocalAI     int8 = 1
	ControlRemote      int8 = 2
	ControlReplay      int8 = 3
)

type ScoringInfo struct {
	TrackName           [64]byte
	Session             int32
	CurrentET           float64
	EndET               float64
	MaxLaps             int32
	LapDist             float64
	NumVehicles         int32
	GamePhase           uint8
	YellowFlagState     int8
	SectorFlag          [3]int8
	StartLight          uint8
	NumRedLights        uint8
	InRealtime          uint8
	PlayerName          [32]byte
	PlrFileName         [64]byte
	DarkCloud           float64
	Raining             float64
	AmbientTemp         float64
	TrackTemp           float64
	Wind                Vec3
	MinPathWetness      float64
	MaxPathWetness      float64
	AvgPathWetness      float64
	GameMode            uint8
	IsPasswordProtected uint8
	ServerPort          uint16
	ServerPublicIP      uint32
	MaxPlayers          int32
	ServerName          [32]byte
	StartET             float32
}

type VehicleScoring struct {
	ID               int32
	DriverName       [32]byte
	VehicleName      [64]byte
	TotalLaps        int16
	Sector           int8
	FinishStatus     int8
	LapDist          float64
	PathLateral      float64
	TrackEdge        float64
	BestSector1      float64
	BestSector2      float64
	BestLapTime      float64
	LastSector1      float64
	LastSector2      float64
	LastLapTime      float64
	CurSector1       float64
	CurSector2       float64
	NumPitstops      int16
	NumPenalties     int16
	IsPlayer         uint8
	Control          int8
	InPits           uint8
	Place            uint8
	VehicleClass     [32]byte
	TimeBehindNext   float64
	LapsBehindNext   int32
	TimeBehindLeader float64
	LapsBehindLeader int32
	LapStartET       float64
	Pos              Vec3
	LocalVel         Vec3
	LocalAccel       Vec3
	PitState         uint8
	ServerScored     uint8
	IndividualPhase  uint8
	Qualification    int32
	TimeIntoLap      float64
	EstimatedLapTime float64
	PitGroup         [24]byte
	Flag             uint8
	UnderYellow      uint8
	CountLapFlag     uint8
	InGarageStall    uint8
	UpgradePack      [16]byte
	PitLapDist       float32
	BestLapSector1   float32
	BestLapSector2   float32
}

type Scoring struct {
	Header
	BytesUpdatedHint int32
	Info             ScoringInfo
	Vehicles         [MaxVehicles]VehicleScoring
}

type Wheel struct {
	SuspensionDeflection      float64
	RideHeight                float64
	SuspForce                 float64
	BrakeTemp                 float64
	BrakePressure             float64
	Rotation                  float64
	LateralPatchVel           float64
	LongitudinalPatchVel      float64
	LateralGroundVel          float64
	LongitudinalGroundVel     float64
	Camber                    float64
	LateralForce              float64
	LongitudinalForce         float64
	TireLoad                  float64
	GripFract                 float64
	Pressure                  float64
	Temperature               [3]float64
	Wear                      float64
	TerrainName               [16]byte
	SurfaceType               uint8
	Flat                      uint8
	Detached                  uint8
	StaticUndeflectedRadius   uint8
	VerticalTireDeflection    float64
	WheelYLocation            float64
	Toe                       float64
	TireCarcassTemperature    float64
	TireInnerLayerTemperature [3]float64
}

type VehicleTelemetry struct {
	ID                       int32
	DeltaTime                float64
	ElapsedTime              float64
	LapNumber                int32
	LapStartET               float64
	VehicleName              [64]byte
	TrackName                [64]byte
	Pos                      Vec3
	LocalVel                 Vec3
	LocalAccel               Vec3
	Ori                      [3]Vec3
	LocalRot                 Vec3
	LocalRotAccel            Vec3
	Gear                     int32
	EngineRPM                float64
	EngineWaterTemp          float64
	EngineOilTemp            float64
	ClutchRPM                float64
	UnfilteredThrottle       float64
	UnfilteredBrake          float64
	UnfilteredSteering       float64
	UnfilteredClutch         float64
	FilteredThrottle         float64
	FilteredBrake            float64
	FilteredSteering         float64
	FilteredClutch           float64
	SteeringShaftTorque      float64
	Front3rdDeflection       float64
	Rear3rdDeflection        float64
	FrontWingHeight          float64
	FrontRideHeight          float64
	RearRideHeight           float64
	Drag                     float64
	FrontDownforce           float64
	RearDownforce            float64
	Fuel                     float64
	EngineMaxRPM             float64
	ScheduledStops           uint8
	Overheating              uint8
	Detached                 uint8
	Headlights               uint8
	DentSeverity             [8]uint8
	LastImpactET             float64
	LastImpactMagnitude      float64
	LastImpactPos            Vec3
	EngineTorque             float64
	CurrentSector            int32
	SpeedLimiter             uint8
	MaxGears                 uint8
	FrontTireCompoundIndex   uint8
	RearTireCompoundIndex    uint8
	FuelCapacity             float64
	FrontFlapActivated       uint8
	RearFlapActivated        uint8
	RearFlapLegalStatus      uint8
	IgnitionStarter          uint8
	FrontTireCompoundName    [18]byte
	RearTireCompoundName     [18]byte
	SpeedLimiterAvailable    uint8
	AntiStallActivated       uint8
	VisualSteeringWheelRng   float32
	RearBrakeBias            float64
	TurboBoostPressure       float64
	PhysicsToGraphicsOffset  [3]float32
	PhysicalSteeringWheelRng float32
	Wheels                   [4]Wheel
}

type Telemetry struct {
	Header
	BytesUpdatedHint int32
	NumVehicles      int32
	Vehicles         [MaxVehicles]VehicleTelemetry
}

type PhysicsOptions struct {
	TractionControl         uint8
	AntiLockBrakes          uint8
	StabilityControl        uint8
	AutoShift               uint8
	AutoClutch              uint8
	Invulnerable            uint8
	OppositeLock            uint8
	SteeringHelp            uint8
	BrakingHelp             uint8
	SpinRecovery            uint8
	AutoPit                 uint8
	AutoLift                uint8
	AutoBlip                uint8
	FuelMult                uint8
	TireMult                uint8
	MechFail                uint8
	AllowPitcrewPush        uint8
	RepeatShifts            uint8
	HoldClutch              uint8
	AutoReverse             uint8
	AlternateNeutral        uint8
	AIControl               uint8
	ManualShiftOverrideTime float32
	AutoShiftOverrideTime   float32
	SpeedSensitiveSteering  float32
	SteerRatioSpeed         float32
}

type Extended struct {
	Header
	Version                         [12]byte
	Is64bit                         uint8
	Physics                         PhysicsOptions
	TicksWeatherUpdated             int64
	TicksSessionStarted             int64
	TicksSessionEnded               int64
	SessionStarted                  uint8
	DirectMemoryAccessEnabled       uint8
	TicksStatusMessageUpdated       int64
	StatusMessage                   [128]byte
	TicksLastHistoryMessageUpdated  int64
	LastHistoryMessage              [128]byte
	CurrentPitSpeedLimit            float32
	SCRPluginEnabled                uint8
	SCRPluginDoubleFileType         int32
	TicksLSIPhaseMessageUpdated     int64
	LSIPhaseMessage                 [96]byte
	TicksLSIPitStateMessageUpdated  int64
	LSIPitStateMessage              [96]byte
	TicksLSIOrderInstructionUpdated int64
	LSIOrderInstructionMessage      [96]byte
	TicksLSIRulesInstructionUpdated int64
	LSIRulesInstructionMessage      [96]byte
	UnsubscribedBuffersMask         int32
	HWControlInputEnabled           uint8
	WeatherControlInputEnabled      uint8
	RulesControlInputEnabled        uint8
	PluginControlInputEnabled       uint8
	InRealtimeFC                    uint8
}

type ForceFeedback struct {
	Header
	ForceValue float64
}
