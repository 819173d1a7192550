package main

import (
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Diagnostic codes
const (
	CodeTargetNotFound goerrors.ErrorCode = "TC_TARGET_NOT_FOUND"
	CodeTargetCycle    goerrors.ErrorCode = "TC_TARGET_CYCLE"
	CodeUnknownTask    goerrors.ErrorCode = "TC_UNKNOWN_TASK"
	CodeTaskFailed     goerrors.ErrorCode = "TC_TASK_FAILED"
	CodeAborted        goerrors.ErrorCode = "TC_ABORTED"
	CodeScriptLoad     goerrors.ErrorCode = "TC_SCRIPT_LOAD"
	CodeConfig         goerrors.ErrorCode = "TC_CONFIG"
)

var exceptionMessages = map[goerrors.ErrorCode]string{
	CodeTargetNotFound: "Could not find target:%s",
	CodeTargetCycle:    "dependency cycle: %s",
	CodeUnknownTask:    "unknown task type %s",
	CodeTaskFailed:     "%s",
	CodeAborted:        "Operation aborted: %s",
	CodeScriptLoad:     "cannot load script %s",
	CodeConfig:         "cannot load config %s",
}

// raise builds the classified error for code, formatting value into its
// message.
func raise(code goerrors.ErrorCode, value string) error {
	return goerrors.New(code, fmt.Sprintf(exceptionMessages[code], value))
}

// wrap classifies a lower-level error under code.
func wrap(err error, code goerrors.ErrorCode, value string) error {
	return goerrors.Wrap(err, code, fmt.Sprintf(exceptionMessages[code], value))
}

func hasCode(err error, code goerrors.ErrorCode) bool {
	return err != nil && goerrors.HasCode(err, code)
}
