package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"teams-notify-api/pkg/lambda"
)

func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := uuid.New().String()
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}

	container, err := lambda.GetConnectionManager().GetContainer(ctx)
	if err != nil {
		// Configuration failures are system errors; the fixed message
		// keeps their detail out of the response.
		return events.APIGatewayProxyResponse{
			StatusCode: 500,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"message": "Internal server error"}`,
		}, nil
	}

	envelope := container.Handler.Handle(ctx, requestID, []byte(event.Body))

	return events.APIGatewayProxyResponse{
		StatusCode: envelope.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       envelope.Body,
	}, nil
}

func main() {
	awslambda.Start(handler)
}
