package validations

import (
	"context"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	pkgError "github.com/AzielCF/az-wrap/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxWaitMillis = 60000

func ValidateLayout(ctx context.Context, request domainAttachment.LayoutRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Sizes, validation.Required, validation.Length(1, 10)),
		validation.Field(&request.MaxWidth, validation.Min(0)),
		validation.Field(&request.MinWidth, validation.Min(0)),
		validation.Field(&request.Spacing, validation.Min(0)),
		validation.Field(&request.MaxHeight, validation.Min(0)),
	)
	if err == nil {
		for _, s := range request.Sizes {
			if s.W < 0 || s.H < 0 {
				return pkgError.ValidationError("sizes: must not be negative.")
			}
		}
	}

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateRender(ctx context.Context, request domainAttachment.RenderRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.BoxWidth, validation.Min(0)),
		validation.Field(&request.BoxHeight, validation.Min(0)),
		validation.Field(&request.OffsetY, validation.Min(0)),
		validation.Field(&request.WaitMillis, validation.Min(0), validation.Max(maxWaitMillis)),
		validation.Field(&request.MessageID, validation.When(request.WithTail, validation.Required.Error("is required for tailed media"))),
	)
	if err == nil {
		err = validation.ValidateStructWithContext(ctx, &request.Descriptor,
			validation.Field(&request.Descriptor.ID, validation.Required),
			validation.Field(&request.Descriptor.Kind, validation.Required, validation.In(
				media.KindPhoto, media.KindVideo, media.KindGif, media.KindRound,
				media.KindVoice, media.KindAudio, media.KindSticker, media.KindDocument,
			)),
		)
	}

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateAlbumRender(ctx context.Context, request domainAttachment.AlbumRenderRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.GroupID, validation.Required),
		validation.Field(&request.OffsetY, validation.Min(0)),
		validation.Field(&request.WaitMillis, validation.Min(0), validation.Max(maxWaitMillis)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateReplyRender(ctx context.Context, request domainAttachment.ReplyRenderRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Title, validation.Required),
		validation.Field(&request.WaitMillis, validation.Min(0), validation.Max(maxWaitMillis)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateScroll(ctx context.Context, request domainAttachment.ScrollRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ScrollTop, validation.Min(0.0)),
		validation.Field(&request.Height, validation.Min(0.0)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
