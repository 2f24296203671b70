package spi

import "bluepill-mcal/core"

// Published identification
const (
	ModuleID = 38
	VendorID = 483

	SWMajorVersion = 4
	SWMinorVersion = 3
	SWPatchVersion = 1
)

// APIID identifies the service an error was raised in.
type APIID uint8

const (
	APIInit              APIID = 0x00
	APIDeInit            APIID = 0x01
	APIWriteIB           APIID = 0x02
	APIReadIB            APIID = 0x04
	APISetupEB           APIID = 0x05
	APIGetStatus         APIID = 0x06
	APIGetJobResult      APIID = 0x07
	APIGetSequenceResult APIID = 0x08
	APIGetVersionInfo    APIID = 0x09
	APISyncTransmit      APIID = 0x0A
	APIGetHWUnitStatus   APIID = 0x0B
)

func (a APIID) String() string {
	switch a {
	case APIInit:
		return "Init"
	case APIDeInit:
		return "DeInit"
	case APIWriteIB:
		return "WriteIB"
	case APIReadIB:
		return "ReadIB"
	case APISetupEB:
		return "SetupEB"
	case APIGetStatus:
		return "GetStatus"
	case APIGetJobResult:
		return "GetJobResult"
	case APIGetSequenceResult:
		return "GetSequenceResult"
	case APIGetVersionInfo:
		return "GetVersionInfo"
	case APISyncTransmit:
		return "SyncTransmit"
	case APIGetHWUnitStatus:
		return "GetHWUnitStatus"
	default:
		return "api(" + core.Hex8(uint8(a)) + ")"
	}
}

// ErrorCode is a development or runtime error id as reported to the error
// tracer. Codes are comparable with errors.Is.
type ErrorCode uint8

const (
	ErrParamChannel       ErrorCode = 0x0A
	ErrParamJob           ErrorCode = 0x0B
	ErrParamSeq           ErrorCode = 0x0C
	ErrParamLength        ErrorCode = 0x0D
	ErrParamUnit          ErrorCode = 0x0E
	ErrParamPointer       ErrorCode = 0x10
	ErrUninit             ErrorCode = 0x1A
	ErrSeqPending         ErrorCode = 0x2A
	ErrSeqInProcess       ErrorCode = 0x3A
	ErrAlreadyInitialized ErrorCode = 0x4A
	ErrHardware           ErrorCode = 0x5A
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrParamChannel:
		return "invalid channel"
	case ErrParamJob:
		return "invalid job"
	case ErrParamSeq:
		return "invalid sequence"
	case ErrParamLength:
		return "invalid length"
	case ErrParamUnit:
		return "invalid hardware unit"
	case ErrParamPointer:
		return "invalid pointer"
	case ErrUninit:
		return "not initialized"
	case ErrSeqPending:
		return "sequence pending"
	case ErrSeqInProcess:
		return "sequence in process"
	case ErrAlreadyInitialized:
		return "already initialized"
	case ErrHardware:
		return "hardware error"
	default:
		return "error " + core.Hex8(uint8(e))
	}
}

// Error is returned by every failing service. Err carries optional detail,
// such as the configuration problems found by Init.
type Error struct {
	API  APIID
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	msg := "spi: " + e.API.String() + ": " + e.Code.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// ErrorReporter receives development and runtime error reports.
// *det.Tracer implements it. The result is ignored by the driver.
type ErrorReporter interface {
	ReportError(moduleID uint16, instanceID, apiID, errorID uint8) error
}
