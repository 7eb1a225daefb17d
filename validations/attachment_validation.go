package validations

import (
	"context"
	"fmt"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func invariant(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", media.ErrInvariantViolation, err)
}

func ValidatePhotoRequest(ctx context.Context, request domainAttachment.PhotoRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Container, validation.NotNil),
		validation.Field(&request.Message, validation.When(request.WithTail, validation.NotNil.Error("is required for tailed media"))),
		validation.Field(&request.BoxWidth, validation.Min(0)),
		validation.Field(&request.BoxHeight, validation.Min(0)),
	)
	return invariant(err)
}

func ValidateVideoRequest(ctx context.Context, request domainAttachment.VideoRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Container, validation.NotNil),
		validation.Field(&request.Message, validation.When(request.WithTail, validation.NotNil.Error("is required for tailed media"))),
	)
	if err == nil {
		err = validation.Validate(request.Doc.Kind, validation.In(media.KindVideo, media.KindGif, media.KindRound))
	}
	return invariant(err)
}

func ValidateStickerRequest(ctx context.Context, request domainAttachment.StickerRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Container, validation.NotNil),
		validation.Field(&request.Width, validation.Min(0)),
		validation.Field(&request.Height, validation.Min(0)),
	)
	if err == nil {
		err = validation.Validate(request.Doc.Sticker,
			validation.Required.Error("sticker kind is missing"),
			validation.In(media.StickerStatic, media.StickerVector),
		)
	}
	return invariant(err)
}

func ValidateAlbumRequest(ctx context.Context, request domainAttachment.AlbumRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.GroupID, validation.Required),
		validation.Field(&request.Container, validation.NotNil),
	)
	return invariant(err)
}
