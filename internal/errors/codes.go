package errors

// Outcome codes. The values are part of the public contract and must not be
// renumbered.
const (
	CodeSuccess              = 0
	CodeSameNumber           = 3
	CodeInvalidPinFormat     = 4
	CodeAmountBelowMinimum   = 5
	CodeAmountAboveMaximum   = 7
	CodeMiscellaneous        = 14
	CodeInvalidSourcePhone   = 20
	CodeInvalidDestPhone     = 21
	CodeInvalidPin           = 22
	CodeInsufficientCredit   = 23
	CodeSubscriptionNotFound = 24
	CodeConcurrentUpdate     = 25
	CodeSourceNotFound       = 26
	CodeDestinationNotFound  = 27
	CodeNotAuthorized        = 28
	CodeConfigurationError   = 29
	CodePropertyNotFound     = 30
	CodeExpiredReservation   = 31
	CodeTransferNotAllowed   = 33
	CodeDailyCountExceeded   = 34
	CodeRemainingBalance     = 35
	CodeAmountNotMultiple    = 36
	CodeSMSFailure           = 37
	CodeHalfBalance          = 40
	CodeDailyCapExceeded     = 43
	CodeServiceUnavailable   = 999
)

type entry struct {
	key     string
	message string
}

// catalog is the hard-coded fallback used when the settings store cannot
// provide an override.
var catalog = map[int]entry{
	CodeSuccess:              {"SUCCESS", "Transfer completed successfully"},
	CodeSameNumber:           {"SAME_NUMBER", "Source and destination numbers are the same"},
	CodeInvalidPinFormat:     {"PIN_FORMAT_INVALID", "PIN format is invalid"},
	CodeAmountBelowMinimum:   {"AMOUNT_BELOW_MINIMUM", "Amount is below the minimum allowed transfer"},
	CodeAmountAboveMaximum:   {"AMOUNT_ABOVE_MAXIMUM", "Amount exceeds the maximum allowed transfer"},
	CodeMiscellaneous:        {"MISCELLANEOUS", "Transfer could not be completed, please try again later"},
	CodeInvalidSourcePhone:   {"INVALID_SOURCE_PHONE", "Source phone number is invalid"},
	CodeInvalidDestPhone:     {"INVALID_DESTINATION_PHONE", "Destination phone number is invalid"},
	CodeInvalidPin:           {"PIN_INVALID", "PIN is invalid"},
	CodeInsufficientCredit:   {"INSUFFICIENT_CREDIT", "Insufficient credit"},
	CodeSubscriptionNotFound: {"SUBSCRIPTION_NOT_FOUND", "Subscription not found"},
	CodeConcurrentUpdate:     {"CONCURRENT_UPDATE", "Concurrent update detected"},
	CodeSourceNotFound:       {"SOURCE_NOT_FOUND", "Source phone number not found"},
	CodeDestinationNotFound:  {"DESTINATION_NOT_FOUND", "Destination phone number not found"},
	CodeNotAuthorized:        {"NOT_AUTHORIZED", "Not authorized to perform this transfer"},
	CodeConfigurationError:   {"CONFIGURATION_ERROR", "Transfer configuration error"},
	CodePropertyNotFound:     {"PROPERTY_NOT_FOUND", "Required property not found"},
	CodeExpiredReservation:   {"EXPIRED_RESERVATION", "Reservation expired before it could be charged"},
	CodeTransferNotAllowed:   {"TRANSFER_NOT_ALLOWED", "Transfer is not allowed between these account types"},
	CodeDailyCountExceeded:   {"DAILY_COUNT_EXCEEDED", "Daily transfer count limit reached"},
	CodeRemainingBalance:     {"REMAINING_BALANCE", "Remaining balance after transfer is below the allowed minimum"},
	CodeAmountNotMultiple:    {"AMOUNT_NOT_MULTIPLE", "Amount must be a multiple of five"},
	CodeSMSFailure:           {"SMS_FAILURE", "Notification could not be sent"},
	CodeHalfBalance:          {"HALF_BALANCE", "Transfer exceeds the allowed share of the balance"},
	CodeDailyCapExceeded:     {"DAILY_CAP_EXCEEDED", "Daily transfer amount limit reached"},
	CodeServiceUnavailable:   {"SERVICE_UNAVAILABLE", "Service unavailable"},
}

func keyFor(code int) string {
	if e, ok := catalog[code]; ok {
		return e.key
	}
	return catalog[CodeMiscellaneous].key
}

func fallbackMessage(code int) string {
	if e, ok := catalog[code]; ok {
		return e.message
	}
	return catalog[CodeMiscellaneous].message
}

func sentinel(code int) *DomainError {
	return &DomainError{Code: code, Key: keyFor(code)}
}

// Sentinels, one per outcome.
var (
	ErrSameNumber           = sentinel(CodeSameNumber)
	ErrInvalidPinFormat     = sentinel(CodeInvalidPinFormat)
	ErrAmountBelowMinimum   = sentinel(CodeAmountBelowMinimum)
	ErrAmountAboveMaximum   = sentinel(CodeAmountAboveMaximum)
	ErrMiscellaneous        = sentinel(CodeMiscellaneous)
	ErrInvalidSourcePhone   = sentinel(CodeInvalidSourcePhone)
	ErrInvalidDestPhone     = sentinel(CodeInvalidDestPhone)
	ErrInvalidPin           = sentinel(CodeInvalidPin)
	ErrInsufficientCredit   = sentinel(CodeInsufficientCredit)
	ErrSubscriptionNotFound = sentinel(CodeSubscriptionNotFound)
	ErrConcurrentUpdate     = sentinel(CodeConcurrentUpdate)
	ErrSourceNotFound       = sentinel(CodeSourceNotFound)
	ErrDestinationNotFound  = sentinel(CodeDestinationNotFound)
	ErrNotAuthorized        = sentinel(CodeNotAuthorized)
	ErrConfiguration        = sentinel(CodeConfigurationError)
	ErrPropertyNotFound     = sentinel(CodePropertyNotFound)
	ErrExpiredReservation   = sentinel(CodeExpiredReservation)
	ErrTransferNotAllowed   = sentinel(CodeTransferNotAllowed)
	ErrDailyCountExceeded   = sentinel(CodeDailyCountExceeded)
	ErrRemainingBalance     = sentinel(CodeRemainingBalance)
	ErrAmountNotMultiple    = sentinel(CodeAmountNotMultiple)
	ErrSMSFailure           = sentinel(CodeSMSFailure)
	ErrHalfBalance          = sentinel(CodeHalfBalance)
	ErrDailyCapExceeded     = sentinel(CodeDailyCapExceeded)
	ErrServiceUnavailable   = sentinel(CodeServiceUnavailable)
)
