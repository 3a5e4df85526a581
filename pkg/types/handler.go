package types

// ErrorHandler turns a modeled pipeline failure into the response the caller
// receives. Each method handles one error kind; HandleError receives kinds
// that have no dedicated method.
type ErrorHandler interface {
	HandleError(e *Error) *Response
	HandleFailedToFind(e *Error) *Response
	HandleHookFailed(e *Error) *Response
	HandleRequestFailed(e *Error) *Response
	HandleRequestCanceled(e *Error) *Response
	HandleCreateEntityFailed(e *Error) *Response
	HandleUpdateEntityFailed(e *Error) *Response
	HandleCreateResultFailed(e *Error) *Response
}

// ErrorHandlerFactory builds a handler for one failed request.
type ErrorHandlerFactory func() ErrorHandler

// DefaultErrorHandler reports every failure as an error response that keeps
// the partial result. Embed it to override individual kinds.
type DefaultErrorHandler struct{}

func (DefaultErrorHandler) HandleError(e *Error) *Response { return ErrorResponse(e) }

func (h DefaultErrorHandler) HandleFailedToFind(e *Error) *Response { return h.HandleError(e) }

func (h DefaultErrorHandler) HandleHookFailed(e *Error) *Response { return h.HandleError(e) }

func (h DefaultErrorHandler) HandleRequestFailed(e *Error) *Response { return h.HandleError(e) }

func (h DefaultErrorHandler) HandleRequestCanceled(e *Error) *Response { return h.HandleError(e) }

func (h DefaultErrorHandler) HandleCreateEntityFailed(e *Error) *Response { return h.HandleError(e) }

func (h DefaultErrorHandler) HandleUpdateEntityFailed(e *Error) *Response { return h.HandleError(e) }

func (h DefaultErrorHandler) HandleCreateResultFailed(e *Error) *Response { return h.HandleError(e) }

// DefaultErrorHandlerFactory returns a DefaultErrorHandler.
func DefaultErrorHandlerFactory() ErrorHandler { return DefaultErrorHandler{} }
