package utils

// ResponseData is the JSON envelope every REST handler answers with.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics with err so the recovery middleware turns it into a response.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
